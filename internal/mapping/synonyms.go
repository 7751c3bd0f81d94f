package mapping

import "github.com/leadscope/prospect-cli/internal/model"

// directMapping resolves a normalized header to a field with absolute
// priority, before any fuzzy matching. FieldSkip entries mark columns
// that must never be mapped automatically.
var directMapping = map[string]string{
	"cnpj":     model.FieldTaxID,
	"cpf cnpj": model.FieldTaxID,

	"razao social":    model.FieldLegalName,
	"razao":           model.FieldLegalName,
	"nome da empresa": model.FieldLegalName,

	"regime tributario": FieldSkip,
	"identificador":     FieldSkip,
	"simples nacional":  FieldSkip,
}

// fieldSynonyms maps each canonical field to the header spellings seen in
// real exports. Matching is fuzzy, so close variants also resolve.
var fieldSynonyms = map[string][]string{
	model.FieldTaxID:       {"CNPJ", "CPF/CNPJ", "Documento", "Doc", "Registro", "CNPJ/CPF"},
	model.FieldCompanyName: {"Nome da Empresa", "Nome Empresa", "Nome", "Empresa", "Company Name", "Business Name"},
	model.FieldTradeName:   {"Nome Fantasia", "Fantasia", "Nome Comercial", "Trade Name", "Trading Name"},
	model.FieldLegalName: {
		"Razão Social", "Razão", "Razao Social", "Razao",
		"Nome da Empresa", "Nome Empresa", "Empresa",
		"Denominação Social", "Denominacao Social",
		"Corporate Name", "Company Name", "Legal Name", "Firma",
	},
	model.FieldEmail:   {"E-mail", "Email", "Correio Eletrônico", "Mail", "Contato Email", "E mail"},
	model.FieldPhone:   {"Telefone", "Telefone 1", "Fone", "Tel", "Celular", "Contato", "Phone"},
	model.FieldWebsite: {"Website", "Site", "URL", "Homepage", "Web", "Página"},

	model.FieldPostalCode: {"CEP", "Código Postal", "Postal Code"},
	model.FieldStreet:     {"Logradouro", "Endereço", "Rua", "Avenida", "Address"},
	model.FieldDistrict:   {"Bairro", "Distrito", "Neighborhood", "Bairro/Distrito"},
	model.FieldCity:       {"Município", "Cidade", "City", "Localidade", "Munic"},
	model.FieldState:      {"UF", "Estado", "State", "Unidade Federativa"},
	model.FieldCountry:    {"País", "Pais", "Country"},

	model.FieldSector:       {"Setor", "Segmento", "Ramo", "Área de Atuação", "Industry"},
	model.FieldSize:         {"Porte", "Porte Empresa", "Tamanho", "Size"},
	model.FieldEmployees:    {"Funcionários", "Quadro de Funcionários", "Colaboradores", "Employees", "Número de Funcionários"},
	model.FieldRevenue:      {"Faturamento Estimado", "Faturamento", "Receita", "Revenue", "Fat Estimado"},
	model.FieldShareCapital: {"Capital Social", "Capital Social da Empresa", "Capital"},

	model.FieldFoundedAt:     {"Data de Abertura", "Data Início Atv", "Data Fundação", "Fundação", "Data Início"},
	model.FieldRegistryState: {"Situação Cadastral", "Situação Cad", "Status Cadastral", "Situação"},
	model.FieldIndustryCode:  {"CNAE Principal", "CNAE", "Código CNAE", "Atividade", "CNAE Prim"},
	model.FieldIndustryDesc:  {"Descrição CNAE", "Atividade Econômica", "Desc CNAE"},

	model.FieldTechStack: {"Tech Stack", "Tecnologias", "Stack Tecnológico"},
	model.FieldERP:       {"ERP Atual", "Sistema ERP", "ERP"},
	model.FieldCRM:       {"CRM Atual", "Sistema CRM", "CRM"},

	model.FieldNotes: {"Observações", "Obs", "Notas", "Comments"},
}

// SystemFields returns the canonical field keys available for mapping,
// in a stable order.
func SystemFields() []string {
	fields := make([]string, 0, len(fieldSynonyms))
	for f := range fieldSynonyms {
		fields = append(fields, f)
	}
	sortStrings(fields)
	return fields
}
