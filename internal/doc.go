// Package voltvector implements the home automation backend of VoltVector.
//
// # Architecture
//
// The service is structured into several key packages:
//   - meross: Appliance cloud client (signed messages over MQTT, local HTTP)
//   - session: Per user cache of logged in cloud sessions
//   - smarthome: Device listing and control on top of the sessions
//   - enphase: Solar monitoring API client
//   - ingestion: Credential rotation, retried fetches and gap backfill
//   - database: Postgres and in-memory interval storage
//   - grpc: gRPC service implementation
//   - scheduler: Cron jobs driving the ingestion
//   - config: YAML configuration with environment overrides
//   - models: Shared data structures
//
// Key Features
//
//   - Smart Plugs:
//     One cloud session per user is kept alive and reused. Device
//     commands go through the broker or, when configured, straight to
//     the device on the local network.
//
//   - Energy Ingestion:
//     Production and consumption are fetched every 15 minutes, merged by
//     interval end and written idempotently. Several upstream apps are
//     rotated to stay within their request quotas.
//
//   - Consistency:
//     A nightly job finds days with missing intervals and fetches them
//     again.
//
// Example Usage
//
//	client := server.NewHomeAutomationClient(conn)
//	resp, err := client.GetEnergyData(ctx, &server.GetEnergyDataRequest{
//	    UserID: 1,
//	    Start:  time.Now().Add(-24 * time.Hour),
//	    End:    time.Now(),
//	})
//
// For more information about specific packages, see their respective
// documentation.
package voltvector
