// Package push provides the client side of the platform's WebSocket push
// channel.
//
// The channel dials the push endpoint, decodes every frame into a
// types.Message and hands it to subscribers in arrival order, on a single
// goroutine. When the connection drops it reconnects with exponential
// backoff and notifies OnConnected subscribers again, which is the signal
// for regions to resynchronize: anything sent while disconnected is lost.
//
// Example Usage:
//
//	ch := push.New(cfg.Push, cfg.API.AppID, tokens, push.WithLogger(logger))
//	cancel := ch.Subscribe(func(msg types.Message) { ... })
//	defer cancel()
//	ch.Start(ctx)
//	defer ch.Close()
package push
