// Package validation checks component and settings configuration.
//
// Struct tag validation is used for decoded component options:
//
//	type options struct {
//	    Lang      string `mapstructure:"lang" validate:"omitempty,oneof=TTL TURTLE NT NTRIPLES N-TRIPLES RDF/XML"`
//	    RateLimit float64 `mapstructure:"rateLimit" validate:"gte=0"`
//	}
//	err := validation.Validate(opts)
//
// Programmatic validation collects several problems before failing:
//
//	v := validation.New()
//	v.Required("url", opts.URL).Min("attempts", opts.Attempts, 1)
//	if err := v.Validate(); err != nil { ... }
package validation
