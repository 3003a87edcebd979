// Package guard adds call interception to the validator.
//
// A guarded call runs in four phases: the receiver's invariants, the
// parameter checks and pre conditions, the call itself, and afterwards the
// invariants again, the return value checks and the post conditions. Types
// take part once their metadata is marked guarded.
//
// Go has no weaving, so guarded methods route their body through the guard
// explicitly:
//
//	func (a *Account) Withdraw(ctx context.Context, amount int) (int, error) {
//		return guard.Call(ctx, g, a, withdraw, []interface{}{amount},
//			func(ctx context.Context) (int, error) {
//				a.balance -= amount
//				return a.balance, nil
//			})
//	}
//
// The context passed to the body carries a Session. Nested guarded calls
// made with it share the session's cycle stack, reentrancy sets and probe
// mode registry.
package guard
