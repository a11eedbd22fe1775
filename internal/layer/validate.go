package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"regiokaart/internal/apperr"
	"regiokaart/internal/diag"
)

// Blocking rules live in the "validate" tag, advisory rules in the "warn" tag.
var (
	errRules  = newValidator("validate")
	warnRules = newValidator("warn")
)

func newValidator(tag string) *validator.Validate {
	v := validator.New()
	v.SetTagName(tag)
	return v
}

// check validates l's fields against the kind rules and appends the findings to d, prefixed with the figure label.
func check(slot Slot, l Layer, d *diag.Diagnostics) {
	label := slot.Label()
	if l.Spec == nil {
		d.Errorf(apperr.Invalid, "%s: Er is geen visualisatie type gekozen.", label)
		return
	}
	if l.Kind().IsMap() != slot.IsMap() {
		d.Errorf(apperr.Invalid, "%s: Visualisatie %s kan niet aan dit figuur toegevoegd worden.", label, l.Kind())
		return
	}
	if l.Dataset == "" {
		d.Errorf(apperr.Invalid, "%s: Er is geen dataset gekozen.", label)
	}
	for _, msg := range fieldMessages(errRules, l.Spec) {
		d.Errorf(apperr.Invalid, "%s: %s", label, msg)
	}
	for _, msg := range fieldMessages(warnRules, l.Spec) {
		d.Warnf("%s: %s", label, msg)
	}
}

func fieldMessages(v *validator.Validate, spec Variant) []string {
	err := v.Struct(spec)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, fe := range ve {
		msg := fieldMessage(spec.Kind(), fe)
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}
	return out
}

func fieldMessage(k Kind, fe validator.FieldError) string {
	field := fe.StructField()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	if fe.Tag() == "oneof" {
		switch field {
		case "Reducer":
			return fmt.Sprintf("Onbekende aggregatiemethode '%v'. Het gemiddelde (mean) wordt gebruikt.", fe.Value())
		case "Level":
			return fmt.Sprintf("Niveau '%v' bestaat niet. Kies Buurt, Wijk of Gemeente.", fe.Value())
		default:
			return fmt.Sprintf("'%v' is geen geldige keuze voor %s. Kies uit: %s.", fe.Value(), strings.ToLower(field), fe.Param())
		}
	}
	switch field {
	case "X":
		return "Er is geen kolom opgegeven voor de x data."
	case "XAxis":
		return "Er is geen titel gegeven voor de x-as"
	case "Y":
		return "Er is geen kolom opgegeven voor de y data."
	case "YAxis":
		return "Er is geen titel gegeven voor de y-as"
	case "Labels":
		return "Er is geen kolom opgegeven voor de labels."
	case "Values":
		return "Er is geen kolom opgegeven voor de bijbehorende waardes."
	case "Codes":
		return "Er is geen regio code (GM/WK/BU) meegegeven."
	case "Level":
		return "Er is geen niveau (Buurt/Wijk/Gemeente) gekozen."
	case "Data":
		return "Er is geen kolom opgegeven die gevisualiseerd wordt op de kaart."
	case "Reducer":
		return "Er is geen aggregatiemethode gekozen. Het gemiddelde (mean) wordt gebruikt."
	}
	return fmt.Sprintf("Veld %s van %s voldoet niet aan regel %s.", field, k, fe.Tag())
}
