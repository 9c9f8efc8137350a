package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SupportedUnitSchemas is the range of encoded unit schemas this build reads.
const SupportedUnitSchemas = "^1.0.0"

// CheckUnitSchema reports whether a unit encoded with schema can be read.
func CheckUnitSchema(schema string) error {
	v, err := semver.NewVersion(schema)
	if err != nil {
		return fmt.Errorf("unit schema %q: %w", schema, err)
	}
	c, err := semver.NewConstraint(SupportedUnitSchemas)
	if err != nil {
		return fmt.Errorf("constraint %q: %w", SupportedUnitSchemas, err)
	}
	if ok, errs := c.Validate(v); !ok {
		if len(errs) > 0 {
			return fmt.Errorf("unit schema %s not supported (want %s): %w", v, SupportedUnitSchemas, errs[0])
		}
		return fmt.Errorf("unit schema %s not supported (want %s)", v, SupportedUnitSchemas)
	}
	return nil
}
