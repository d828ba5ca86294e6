package template

import (
	"compliancedocs/internal/folder/model"
	"compliancedocs/pkg/apperr"
)

// Registry is the static catalog mapping a compliance category to its
// ordered list of required document specifications. Adding a category means
// adding one entry here; no call site changes.
type Registry struct {
	templates map[model.Category][]model.DocumentSpec
}

func NewRegistry() *Registry {
	return &Registry{templates: defaultTemplates()}
}

// SpecsFor returns the ordered document specs for a category.
func (r *Registry) SpecsFor(category model.Category) ([]model.DocumentSpec, error) {
	specs, ok := r.templates[category]
	if !ok {
		return nil, apperr.New(apperr.UnknownCategory, "no template registered for category %q", category)
	}
	out := make([]model.DocumentSpec, len(specs))
	copy(out, specs)
	return out, nil
}

// Categories returns every registered category.
func (r *Registry) Categories() []model.Category {
	out := make([]model.Category, 0, len(r.templates))
	for c := range r.templates {
		out = append(out, c)
	}
	return out
}

func defaultTemplates() map[model.Category][]model.DocumentSpec {
	return map[model.Category][]model.DocumentSpec{
		model.CategoryCompany: {
			{Category: model.CategoryCompany, Type: "BUSINESS_LICENSE", Name: "Business license", Required: true, Description: "Current trade register extract"},
			{Category: model.CategoryCompany, Type: "LIABILITY_INSURANCE", Name: "Liability insurance certificate", Required: true},
			{Category: model.CategoryCompany, Type: "SAFETY_PLAN", Name: "Occupational safety plan", Required: true},
			{Category: model.CategoryCompany, Type: "ENVIRONMENTAL_PERMIT", Name: "Environmental permit", Required: false, Description: "Only for sites with regulated emissions"},
		},
		model.CategoryWorkOrder: {
			{Category: model.CategoryWorkOrder, Type: "RISK_ASSESSMENT", Name: "Risk assessment", Required: true},
			{Category: model.CategoryWorkOrder, Type: "METHOD_STATEMENT", Name: "Method statement", Required: true},
			{Category: model.CategoryWorkOrder, Type: "PERMIT_TO_WORK", Name: "Permit to work", Required: false},
		},
		model.CategoryVehicles: {
			{Category: model.CategoryVehicles, Type: "REG", Name: "Vehicle registration", Required: true},
			{Category: model.CategoryVehicles, Type: "INSPECTION", Name: "Technical inspection report", Required: true},
			{Category: model.CategoryVehicles, Type: "INSURANCE", Name: "Vehicle insurance", Required: false},
		},
		model.CategoryWorkers: {
			{Category: model.CategoryWorkers, Type: "ID_CARD", Name: "Identity document", Required: true},
			{Category: model.CategoryWorkers, Type: "MEDICAL_CERT", Name: "Medical fitness certificate", Required: true},
			{Category: model.CategoryWorkers, Type: "SAFETY_TRAINING", Name: "Safety training record", Required: true},
			{Category: model.CategoryWorkers, Type: "DRIVER_LICENSE", Name: "Driver license", Required: false, Description: "Required only for drivers, tracked per worker"},
		},
	}
}
