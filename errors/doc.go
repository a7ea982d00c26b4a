// Package errors turns fatal blueprint CLI failures into operator-facing
// messages with a suggestion.
//
// Classification looks at typed causes: network and DNS errors, certificate
// errors, MongoDB command codes, AMQP reply codes and the sentinels of the
// config, auth, http and publish packages.
//
//	svc, err := blueprint.NewService(ctx, settings)
//	if err != nil {
//	    return errors.Wrap(err, "mongo store")
//	}
package errors
