// Package environment names the deployment a process runs in and carries it
// through context.Context.
//
// Parse turns AUTHCTL_ENV style values ("prod", "staging", "dev") into an
// Environment. WithContext and FromContext move it through call chains and
// LoggerExtractor plugs it into logger.WithContextExtractors so every record
// carries an "env" attribute.
//
//	env := environment.Parse(os.Getenv("AUTHCTL_ENV"))
//	ctx := environment.WithContext(ctx, env)
//	if environment.IsProduction(ctx) {
//		// ...
//	}
package environment
