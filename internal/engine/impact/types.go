package impact

import (
	"time"

	"github.com/google/uuid"

	"guardrail/internal/engine/parser"
)

type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
	ChangeMove   ChangeType = "move"
)

// CodeChange is the immutable input describing one edit, supplied by an
// external collaborator (editor, CLI, hook).
type CodeChange struct {
	ID          string
	Type        ChangeType
	FilePath    string
	OldContent  []byte
	NewContent  []byte
	Author      string
	Timestamp   time.Time
	Description string
}

// NewChange builds a CodeChange with a generated id and current timestamp.
func NewChange(changeType ChangeType, filePath string, oldContent, newContent []byte) CodeChange {
	return CodeChange{
		ID:         uuid.NewString(),
		Type:       changeType,
		FilePath:   filePath,
		OldContent: oldContent,
		NewContent: newContent,
		Timestamp:  time.Now(),
	}
}

type ComponentType string

const (
	ComponentFunction    ComponentType = "function"
	ComponentClass       ComponentType = "class"
	ComponentInterface   ComponentType = "interface"
	ComponentTypeAlias   ComponentType = "type"
	ComponentVariable    ComponentType = "variable"
	ComponentAPIEndpoint ComponentType = "api-endpoint"
)

// ComponentReference points at one symbol, used both as impact output and
// as the affected-usage payload of a breaking change.
type ComponentReference struct {
	Type         ComponentType
	Name         string
	FilePath     string
	Location     parser.Location
	Signature    string
	Dependencies []string
}

type BreakingChangeType string

const (
	BreakingAPI       BreakingChangeType = "api"
	BreakingDatabase  BreakingChangeType = "database"
	BreakingType      BreakingChangeType = "type"
	BreakingFunction  BreakingChangeType = "function"
	BreakingInterface BreakingChangeType = "interface"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// BreakingChange is produced transiently per analyzed change and never
// persisted.
type BreakingChange struct {
	Type           BreakingChangeType
	Description    string
	AffectedUsages []ComponentReference
	Severity       Severity
	AutoFixable    bool
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ImpactAnalysis is the full verdict for one CodeChange.
type ImpactAnalysis struct {
	ChangeID             string
	FilePath             string
	AffectedFiles        []string
	AffectedComponents   []ComponentReference
	BreakingChanges      []BreakingChange
	RiskScore            float64
	RiskLevel            RiskLevel
	MitigationStrategies []string
}

// ImpactMap aggregates per-change analyses into one project-wide view.
type ImpactMap struct {
	Analyses []ImpactAnalysis
	Summary  ImpactSummary
}

type ImpactSummary struct {
	TotalChanges            int
	TotalAffectedFiles      int
	TotalAffectedComponents int
	RiskDistribution        map[RiskLevel]int
	CriticalComponents      []string
	HighestRisk             RiskLevel
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

func riskRank(r RiskLevel) int {
	switch r {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

func componentTypeFor(kind parser.DefinitionKind) ComponentType {
	switch kind {
	case parser.KindClass:
		return ComponentClass
	case parser.KindInterface:
		return ComponentInterface
	case parser.KindType:
		return ComponentTypeAlias
	case parser.KindVariable, parser.KindConstant:
		return ComponentVariable
	default:
		return ComponentFunction
	}
}
