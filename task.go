package children

// Init is the per-member body factory: a function taking a per-member
// Context and running until the member's work is done. A nil return means
// the member finished cleanly; anything else is a fault.
type Init func(Context) error

// identityInit is the Group's default body before WithExec is called: it
// returns immediately, successfully. A Group launched without a body is a
// no-op group, which lets callers build one incrementally.
func identityInit(Context) error { return nil }

// SteppedInit adapts a step function, called repeatedly until it errors
// or the Context is cancelled, into an Init.
func SteppedInit(step func(Context) error) Init {
	return func(ctx Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				if err := step(ctx); err != nil {
					return err
				}
			}
		}
	}
}
