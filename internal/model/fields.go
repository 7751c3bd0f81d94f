package model

// Canonical field keys. These match the column vocabulary of the source
// spreadsheets (Brazilian company registry exports) and are the keys of
// Company.Fields.
const (
	FieldTaxID       = "cnpj"
	FieldLegalName   = "razao_social"
	FieldCompanyName = "nome_da_empresa"
	FieldTradeName   = "nome_fantasia"
	FieldEmail       = "email"
	FieldPhone       = "telefone"
	FieldWebsite     = "website"
	FieldDomain      = "domain"

	FieldPostalCode = "cep"
	FieldStreet     = "logradouro"
	FieldDistrict   = "bairro"
	FieldCity       = "municipio"
	FieldState      = "uf"
	FieldCountry    = "pais"

	FieldSector       = "setor"
	FieldSize         = "porte"
	FieldEmployees    = "funcionarios"
	FieldRevenue      = "faturamento_estimado"
	FieldShareCapital = "capital_social"

	FieldFoundedAt     = "data_de_abertura"
	FieldRegistryState = "situacao_cadastral"
	FieldIndustryCode  = "cnae_principal_codigo"
	FieldIndustryDesc  = "cnae_principal_descricao"

	FieldTechStack = "tech_stack"
	FieldERP       = "erp_atual"
	FieldCRM       = "crm_atual"

	FieldNotes = "observacoes"
)

// ICPWeights are the five dimension weights of the scoring rubric.
// By convention they sum to 100; the scorer scales proportionally when
// they do not.
type ICPWeights struct {
	Location   int `yaml:"location" json:"location"`
	Size       int `yaml:"size" json:"size"`
	Industry   int `yaml:"industry" json:"industry"`
	Status     int `yaml:"status" json:"status"`
	Technology int `yaml:"technology" json:"technology"`
}

// Total returns the sum of all dimension weights.
func (w ICPWeights) Total() int {
	return w.Location + w.Size + w.Industry + w.Status + w.Technology
}

// DefaultWeights returns the built-in scoring weights.
func DefaultWeights() ICPWeights {
	return ICPWeights{
		Location:   20,
		Size:       30,
		Industry:   25,
		Status:     10,
		Technology: 15,
	}
}

// ICPCriteria are tenant-supplied targets and weights for the scorer.
// Read-only to the pipeline.
type ICPCriteria struct {
	PriorityStates []string `yaml:"priority_states" json:"priority_states,omitempty"`
	PriorityCities []string `yaml:"priority_cities" json:"priority_cities,omitempty"`
	PrioritySizes  []string `yaml:"priority_sizes" json:"priority_sizes,omitempty"`
	PriorityCNAEs  []string `yaml:"priority_cnaes" json:"priority_cnaes,omitempty"`
	TechTargets    []string `yaml:"tech_targets" json:"tech_targets,omitempty"`
	ValidStatuses  []string `yaml:"valid_statuses" json:"valid_statuses,omitempty"`

	MinRevenue   float64 `yaml:"min_revenue" json:"min_revenue,omitempty"`
	MinHeadcount int     `yaml:"min_headcount" json:"min_headcount,omitempty"`

	Weights ICPWeights `yaml:"weights" json:"weights"`
}

// DefaultCriteria returns criteria with default weights and the standard
// valid registry status.
func DefaultCriteria() ICPCriteria {
	return ICPCriteria{
		ValidStatuses: []string{"ATIVA"},
		Weights:       DefaultWeights(),
	}
}
