// Package redis connects the engine's distributed collaborators to a
// Redis server: the sliding-window throttle store and the cross-process
// event bus both take the client this package produces.
//
// Connect retries with the configured interval until the server is
// reachable or the connect timeout passes, so a process starting before
// its Redis container is ready does not crash-loop:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	store, err := throttle.NewRedisStore(client)
//	events, err := bus.NewRedisBus(client)
//
// Healthcheck returns a probe function for liveness/readiness endpoints.
package redis
