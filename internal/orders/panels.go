package orders

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/saborverde/opsboard/internal/transform"
	"github.com/saborverde/opsboard/model"
)

// PanelSpec builds the edit panel for order records. The status field carries
// an Editable wrapper computed once, from the record handed to the panel at
// open time, so the lifecycle policy freezes for the session. statuses feeds
// the select options; invalidate fires after each successful mutation.
func PanelSpec(statuses []OrderStatus, invalidate func()) model.PanelSpec {
	options := make([]model.Option, 0, len(statuses))
	for _, s := range statuses {
		options = append(options, model.Option{Label: s.Description, Value: s.ID})
	}

	return model.PanelSpec{
		Title: func(rec model.Record) string {
			if code, ok := rec["code"].(string); ok && code != "" {
				return "Pedido " + code
			}
			return "Pedido"
		},
		Description: func(rec model.Record) string {
			status, err := StatusFromRecord(rec)
			if err != nil {
				return ""
			}
			return status.Description
		},
		Fields: []model.FieldSpec{
			{
				Name:    "order_status_id",
				Label:   "Status",
				Kind:    model.FieldSelect,
				ColSpan: 1,
				Options: options,
				Default: func(rec model.Record) (any, error) {
					status, err := StatusFromRecord(rec)
					if err != nil {
						return nil, err
					}
					return Wrap(rec, status.ID), nil
				},
				Format: transform.EditableUnwrap,
			},
			{
				Name:    "delivery_date",
				Label:   "Data de entrega",
				Kind:    model.FieldText,
				ColSpan: 1,
				Default: func(rec model.Record) (any, error) {
					return Wrap(rec, rec["delivery_date"]), nil
				},
				Format: transform.EditableUnwrap,
			},
			{
				Name:    "notes",
				Label:   "Observações",
				Kind:    model.FieldText,
				ColSpan: 2,
				Parse:   transform.Trim,
				Format:  transform.Trim,
			},
		},
		UpdateSchema: orderUpdateSchema(),
		Invalidate:   invalidate,
	}
}

func orderUpdateSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Required = []string{"order_status_id"}
	s.Properties = openapi3.Schemas{
		"order_status_id": openapi3.NewStringSchema().WithMinLength(1).NewRef(),
		"delivery_date":   openapi3.NewStringSchema().WithNullable().NewRef(),
		"notes":           openapi3.NewStringSchema().WithNullable().NewRef(),
	}
	return s
}

// CustomerPanelSpec builds the edit panel for customer records, the second
// worked consumer. Document fields are masked for display and stripped back
// to digits on save.
func CustomerPanelSpec(invalidate func()) model.PanelSpec {
	return model.PanelSpec{
		Title: func(rec model.Record) string {
			if name, ok := rec["name"].(string); ok && name != "" {
				return name
			}
			return "Cliente"
		},
		Fields: []model.FieldSpec{
			{
				Name:    "name",
				Label:   "Nome",
				Kind:    model.FieldText,
				ColSpan: 2,
				Parse:   transform.Trim,
				Format:  transform.Trim,
			},
			{
				Name:    "cnpj",
				Label:   "CNPJ",
				Kind:    model.FieldText,
				ColSpan: 1,
				Parse:   transform.MaskCNPJ,
				Format:  transform.DigitsOnly,
			},
			{
				Name:    "phone",
				Label:   "Telefone",
				Kind:    model.FieldText,
				ColSpan: 1,
				Parse:   transform.DigitsOnly,
				Format:  transform.DigitsOnly,
			},
			{
				Name:    "address.cep",
				Label:   "CEP",
				Kind:    model.FieldText,
				ColSpan: 1,
				Parse:   transform.MaskCEP,
				Format:  transform.DigitsOnly,
			},
			{
				Name:    "address.city",
				Label:   "Cidade",
				Kind:    model.FieldText,
				ColSpan: 1,
				Parse:   transform.Trim,
				Format:  transform.Trim,
			},
			{
				Name:    "credit_limit",
				Label:   "Limite de crédito",
				Kind:    model.FieldCustom,
				ColSpan: 1,
				Format:  transform.ToFloat,
				View: func(value any) map[string]any {
					return map[string]any{
						"control":  "currency",
						"currency": "BRL",
						"value":    value,
					}
				},
			},
		},
		UpdateSchema: customerUpdateSchema(),
		Invalidate:   invalidate,
	}
}

func customerUpdateSchema() *openapi3.Schema {
	address := openapi3.NewObjectSchema()
	address.Properties = openapi3.Schemas{
		"cep":  openapi3.NewStringSchema().WithPattern(`^\d{8}$`).NewRef(),
		"city": openapi3.NewStringSchema().NewRef(),
	}

	s := openapi3.NewObjectSchema()
	s.Required = []string{"name"}
	s.Properties = openapi3.Schemas{
		"name":         openapi3.NewStringSchema().WithMinLength(1).NewRef(),
		"cnpj":         openapi3.NewStringSchema().WithPattern(`^\d{14}$`).WithNullable().NewRef(),
		"phone":        openapi3.NewStringSchema().WithNullable().NewRef(),
		"address":      address.NewRef(),
		"credit_limit": openapi3.NewFloat64Schema().WithNullable().NewRef(),
	}
	return s
}

// StatusLadder is the default lifecycle ladder seeded for new installations.
// Production deployments load theirs from the orders service.
func StatusLadder() []OrderStatus {
	return []OrderStatus{
		{ID: "st-novo", Description: "Novo", SequenceOrder: 0},
		{ID: "st-producao", Description: "Em produção", SequenceOrder: 1},
		{ID: "st-pronto", Description: "Pronto", SequenceOrder: 2},
		{ID: "st-rota", Description: "Em rota", SequenceOrder: 3, DeliveryMethod: DeliveryEntrega},
		{ID: "st-aguardando", Description: "Aguardando retirada", SequenceOrder: 3, DeliveryMethod: DeliveryRetirada},
		{ID: "st-entregue", Description: "Concluído", SequenceOrder: 4},
	}
}

// StatusByID looks a rung up by id.
func StatusByID(statuses []OrderStatus, id string) (OrderStatus, error) {
	for _, s := range statuses {
		if s.ID == id {
			return s, nil
		}
	}
	return OrderStatus{}, fmt.Errorf("unknown order status %q", id)
}
