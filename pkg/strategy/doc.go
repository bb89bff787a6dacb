// Package strategy resolves a notification's priority into a delivery
// strategy: the required channel candidates, the retry budget, and the
// escalation delay.
//
// The resolver consults a PresenceChecker so realtime delivery is only
// required when the recipient actually has a live connection. Critical
// notifications bypass quiet hours and force all channels; the applied
// overrides are recorded on the strategy for auditing.
//
// Example:
//
//	resolver := strategy.NewResolver(strategy.WithPresenceChecker(hub))
//	plan, err := resolver.DetermineStrategy(ctx, n.RecipientID, n)
//	if err != nil {
//		return err
//	}
//	fmt.Println(plan.Channels, plan.RetryPolicy.MaxRetries)
package strategy
