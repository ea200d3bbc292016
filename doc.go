// Package ae is the client-side runtime for an Aegnix agent ("AE").
//
// An AE authenticates to the ABI broker with an Ed25519 challenge-response
// handshake, holds a refreshable access/refresh token session, signs every
// outbound envelope, and exchanges messages over a pluggable transport.
//
// # Quick Start
//
//	keys, _ := ae.GenerateKeyMaterial()
//	client, _ := ae.NewClient("alpha", keys,
//	    ae.WithBrokerURL("http://localhost:8080"),
//	    ae.WithTransportKind(transport.KindHTTP),
//	    ae.WithSubscribes("hello.world"),
//	)
//	if err := client.ResumeOrRegister(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	client.Handle("hello.world", func(msg *ae.Envelope) {
//	    fmt.Println("received:", string(msg.Payload))
//	})
//	client.Listen(ctx)
//
// # Sub-packages
//
//   - [session] provides Store implementations (FileStore, MemoryStore).
//   - [transport] provides delivery backends (in-process, HTTP+SSE,
//     managed pub/sub, Kafka).
package ae
