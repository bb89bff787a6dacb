// Package alertkit is a notification delivery and escalation engine:
// given an event, it decides how urgently and through which channels it
// must be delivered, attempts delivery concurrently with per-recipient
// throttling, and escalates when delivery fails or acknowledgement does
// not arrive in time.
//
// The pipeline runs in four stages, each usable on its own from pkg/:
//
//   - strategy resolves a notification's priority to a delivery plan
//     (channel candidates, retry budget, escalation delay)
//   - routing evaluates ordered condition rules, applies recipient
//     preferences and quiet hours, and caches the decision
//   - delivery owns the bounded queue and the dispatch scheduler, fanning
//     each notification out to one adapter per channel
//   - escalation consumes delivery outcomes and sweeps unacknowledged
//     notifications, widening delivery when escalation rules match
//
// The Engine in this package wires the stages together:
//
//	engine, err := alertkit.New(
//		alertkit.WithStore(pgStore),
//		alertkit.WithAdapters(
//			delivery.NewRealtimeAdapter(hub),
//			delivery.NewEmailAdapter(sender, directory),
//		),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := engine.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	n, err := engine.Notify(ctx, "user-42", "Login from new device",
//		"A new sign-in was detected from Berlin, Germany.",
//		notification.CategorySecurity, notification.PriorityHigh, nil, nil)
//
// With no options the engine runs fully in-process (memory store, memory
// bus, memory throttle), which is the development and test configuration.
package alertkit
