package ast

type (
	ItemID    uint32
	StmtID    uint32
	ExprID    uint32
	PatternID uint32
	TypeID    uint32
	ParamID   uint32
	// PayloadID indexes the per-kind payload arena of a node.
	PayloadID uint32
)

const (
	NoItemID    ItemID    = 0
	NoStmtID    StmtID    = 0
	NoExprID    ExprID    = 0
	NoPatternID PatternID = 0
	NoTypeID    TypeID    = 0
	NoParamID   ParamID   = 0
	NoPayloadID PayloadID = 0
)

func (id ItemID) IsValid() bool    { return id != NoItemID }
func (id StmtID) IsValid() bool    { return id != NoStmtID }
func (id ExprID) IsValid() bool    { return id != NoExprID }
func (id PatternID) IsValid() bool { return id != NoPatternID }
func (id TypeID) IsValid() bool    { return id != NoTypeID }
func (id ParamID) IsValid() bool   { return id != NoParamID }
