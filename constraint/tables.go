package constraint

// Known document types. These are the catalog's closed set; anything
// else is treated permissively by the admission layer.
const (
	StakeholderRegister       DocType = "stakeholder-register"
	BusinessCase              DocType = "business-case"
	ProjectCharter            DocType = "project-charter"
	HighLevelRequirements     DocType = "high-level-requirements"
	ScopeStatement            DocType = "scope-statement"
	WorkBreakdownStructure    DocType = "work-breakdown-structure"
	RiskRegister              DocType = "risk-register"
	UserStories               DocType = "user-stories"
	BusinessRequirements      DocType = "business-requirements"
	FunctionalRequirements    DocType = "functional-requirements"
	NonFunctionalRequirements DocType = "non-functional-requirements"
	UseCaseModel              DocType = "use-case-model"
	SRS                       DocType = "srs"
	DataDictionary            DocType = "data-dictionary"
	RequirementsTraceability  DocType = "requirements-traceability-matrix"
	ProcessFlowDiagram        DocType = "process-flow-diagram"
	UIUXWireframe             DocType = "uiux-wireframe"
	UIUXMockup                DocType = "uiux-mockup"
	HLDArchitecture           DocType = "hld-arch"
	LLDDesign                 DocType = "lld-design"
	DatabaseSchema            DocType = "database-schema"
	APISpecification          DocType = "api-spec"
	ERDDiagram                DocType = "erd-diagram"
	SequenceDiagram           DocType = "sequence-diagram"
	ClassDiagram              DocType = "class-diagram"
	DeploymentDiagram         DocType = "deployment-diagram"
)

// catalogTable is the compiled-in constraint table (enhanced edition).
// Required prerequisites always point to an earlier phase, which keeps
// the required graph acyclic by construction. Load verifies this.
var catalogTable = []Constraint{
	// Phase 1 — initiation
	{
		Type:        StakeholderRegister,
		DisplayName: "Stakeholder Register",
		Phase:       1,
		Category:    CategoryPlanning,
		EntryPoint:  true,
	},
	{
		Type:        BusinessCase,
		DisplayName: "Business Case",
		Phase:       1,
		Category:    CategoryPlanning,
		Required:    []DocType{StakeholderRegister},
	},
	{
		Type:        ProjectCharter,
		DisplayName: "Project Charter",
		Phase:       1,
		Category:    CategoryPlanning,
		Required:    []DocType{BusinessCase},
		Recommended: []DocType{StakeholderRegister},
	},

	// Phase 2 — scoping
	{
		Type:        HighLevelRequirements,
		DisplayName: "High-Level Requirements",
		Phase:       2,
		Category:    CategoryAnalysis,
		EntryPoint:  true,
	},
	{
		Type:        ScopeStatement,
		DisplayName: "Scope Statement",
		Phase:       2,
		Category:    CategoryPlanning,
		Required:    []DocType{HighLevelRequirements},
		Recommended: []DocType{BusinessCase},
	},

	// Phase 3 — planning detail
	{
		Type:        WorkBreakdownStructure,
		DisplayName: "Work Breakdown Structure",
		Phase:       3,
		Category:    CategoryPlanning,
		Required:    []DocType{ScopeStatement},
		Recommended: []DocType{ProjectCharter},
	},
	{
		Type:        RiskRegister,
		DisplayName: "Risk Register",
		Phase:       3,
		Category:    CategoryPlanning,
		Required:    []DocType{ScopeStatement},
		Recommended: []DocType{StakeholderRegister},
	},
	{
		Type:        UserStories,
		DisplayName: "User Stories",
		Phase:       3,
		Category:    CategoryAnalysis,
		Required:    []DocType{HighLevelRequirements},
		Recommended: []DocType{StakeholderRegister},
	},

	// Phase 4 — requirements analysis
	{
		Type:        BusinessRequirements,
		DisplayName: "Business Requirements Document",
		Phase:       4,
		Category:    CategoryAnalysis,
		Required:    []DocType{HighLevelRequirements},
		Recommended: []DocType{StakeholderRegister, ScopeStatement},
		Enhances:    []DocType{BusinessCase},
	},
	{
		Type:        FunctionalRequirements,
		DisplayName: "Functional Requirements",
		Phase:       4,
		Category:    CategoryAnalysis,
		Required:    []DocType{BusinessRequirements},
		Recommended: []DocType{ScopeStatement},
	},
	{
		Type:        NonFunctionalRequirements,
		DisplayName: "Non-Functional Requirements",
		Phase:       4,
		Category:    CategoryAnalysis,
		Required:    []DocType{BusinessRequirements},
		Enhances:    []DocType{RiskRegister},
	},
	{
		Type:        UseCaseModel,
		DisplayName: "Use Case Model",
		Phase:       4,
		Category:    CategoryAnalysis,
		Required:    []DocType{FunctionalRequirements},
		Recommended: []DocType{UserStories},
	},

	// Phase 5 — specification
	{
		Type:        SRS,
		DisplayName: "Software Requirements Specification",
		Phase:       5,
		Category:    CategorySRS,
		Required:    []DocType{FunctionalRequirements, NonFunctionalRequirements},
		Recommended: []DocType{UseCaseModel, UserStories},
		Enhances:    []DocType{RiskRegister},
	},
	{
		Type:        DataDictionary,
		DisplayName: "Data Dictionary",
		Phase:       5,
		Category:    CategorySRS,
		Required:    []DocType{FunctionalRequirements},
		Recommended: []DocType{SRS},
	},
	{
		Type:        RequirementsTraceability,
		DisplayName: "Requirements Traceability Matrix",
		Phase:       5,
		Category:    CategorySRS,
		Required:    []DocType{SRS},
		Recommended: []DocType{UseCaseModel},
	},
	{
		Type:        ProcessFlowDiagram,
		DisplayName: "Process Flow Diagram",
		Phase:       5,
		Category:    CategoryDiagram,
		Required:    []DocType{FunctionalRequirements},
		Recommended: []DocType{UseCaseModel},
	},

	// Phase 6 — high-level design
	{
		Type:        UIUXWireframe,
		DisplayName: "UI/UX Wireframe",
		Phase:       6,
		Category:    CategoryDesign,
		Required:    []DocType{ScopeStatement},
		Recommended: []DocType{UserStories},
	},
	{
		Type:        UIUXMockup,
		DisplayName: "UI/UX Mockup",
		Phase:       6,
		Category:    CategoryDesign,
		Required:    []DocType{UIUXWireframe},
		Recommended: []DocType{HLDArchitecture},
		Enhances:    []DocType{UserStories},
	},
	{
		Type:        HLDArchitecture,
		DisplayName: "High-Level Architecture",
		Phase:       6,
		Category:    CategoryDesign,
		Required:    []DocType{HighLevelRequirements},
		Recommended: []DocType{SRS, NonFunctionalRequirements},
	},

	// Phase 7 — detailed design
	{
		Type:        LLDDesign,
		DisplayName: "Low-Level Design",
		Phase:       7,
		Category:    CategoryDesign,
		Required:    []DocType{HLDArchitecture},
		Recommended: []DocType{SRS},
		Enhances:    []DocType{DataDictionary},
	},
	{
		Type:        DatabaseSchema,
		DisplayName: "Database Schema",
		Phase:       7,
		Category:    CategoryDesign,
		Required:    []DocType{DataDictionary},
		Recommended: []DocType{LLDDesign},
	},
	{
		Type:        APISpecification,
		DisplayName: "API Specification",
		Phase:       7,
		Category:    CategorySRS,
		Required:    []DocType{HLDArchitecture},
		Recommended: []DocType{FunctionalRequirements, DataDictionary},
	},

	// Phase 8 — modeling diagrams
	{
		Type:        ERDDiagram,
		DisplayName: "Entity Relationship Diagram",
		Phase:       8,
		Category:    CategoryDiagram,
		Required:    []DocType{DataDictionary},
		Recommended: []DocType{DatabaseSchema},
	},
	{
		Type:        SequenceDiagram,
		DisplayName: "Sequence Diagram",
		Phase:       8,
		Category:    CategoryDiagram,
		Required:    []DocType{UseCaseModel},
		Recommended: []DocType{HLDArchitecture},
		Enhances:    []DocType{APISpecification},
	},
	{
		Type:        ClassDiagram,
		DisplayName: "Class Diagram",
		Phase:       8,
		Category:    CategoryDiagram,
		Required:    []DocType{LLDDesign},
	},

	// Phase 9 — deployment
	{
		Type:        DeploymentDiagram,
		DisplayName: "Deployment Diagram",
		Phase:       9,
		Category:    CategoryDiagram,
		Required:    []DocType{HLDArchitecture},
		Recommended: []DocType{LLDDesign},
	},
}
