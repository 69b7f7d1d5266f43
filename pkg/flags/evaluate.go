package flags

import "slices"

// evaluate resolves flag against evalCtx. Targeting rules are checked in
// order; the first match wins, otherwise the default variant applies.
func evaluate(name string, flag *Flag, evalCtx EvaluationContext) (*Evaluation, error) {
	if flag.State == StateDisabled {
		return nil, NewEvaluationError(name, "flag is disabled")
	}

	variant, reason := flag.DefaultVariant, ReasonStatic
	for _, rule := range flag.Targeting {
		if attr, ok := evalCtx[rule.Key]; ok && slices.Contains(rule.Values, attr) {
			variant, reason = rule.Variant, ReasonTargetingMatch
			break
		}
	}

	value, ok := flag.Variants[variant]
	if !ok {
		return nil, NewEvaluationError(name, "variant "+variant+" is not defined")
	}

	return &Evaluation{
		Flag:    name,
		Variant: variant,
		Value:   value,
		Reason:  reason,
	}, nil
}

// boolValue returns the boolean value of the flag's default variant.
func boolValue(name string, flag *Flag) (bool, error) {
	value, ok := flag.Variants[flag.DefaultVariant]
	if !ok {
		return false, NewEvaluationError(name, "default variant "+flag.DefaultVariant+" is not defined")
	}
	b, ok := value.(bool)
	if !ok {
		return false, NewInvalidValueError(name, "default variant is not a boolean")
	}
	return b, nil
}

// setVariant points flag's default variant at variant.
func setVariant(name string, flag *Flag, variant string) error {
	if _, ok := flag.Variants[variant]; !ok {
		return NewInvalidValueError(name, "flag has no "+variant+" variant")
	}
	flag.DefaultVariant = variant
	if variant == VariantOn {
		flag.State = StateEnabled
	}
	return nil
}
