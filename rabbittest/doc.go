// Package rabbittest provides a RabbitMQ test harness and "stretchr/testify/suite" testing suites.
//
// Harness resets the broker virtual host and configures a bus with a single
// receive endpoint:
//
//	h := rabbittest.New(rabbittest.WithInputQueueName("orders"))
//	h.OnConfigureReceiveEndpoint(func(e *bus.EndpointConfigurator) {
//	  e.Handle("order-created", handle)
//	})
//	b, err := h.Start(ctx)
//
// Suites embed ConnectionSuite, ChannelSuite or HarnessSuite.
// Set up RABBITMQ_HOST_ADDRESS (or RABBITMQ_DOCKER=true) and run tests:
//
//	RABBITMQ_HOST_ADDRESS=rabbitmq://localhost/ go test -v ./...
package rabbittest
