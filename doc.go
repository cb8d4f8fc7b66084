// Package plexapm is an in-process performance-telemetry collector.
//
// A Client measures request and job executions together with the nested work
// they perform (queries, cache calls, outbound HTTP and RPC), captures faults
// raised while measuring, and ships aggregated samples to a remote collector
// off the request path.
//
// Measurements are keyed by an execution context carried inside a
// context.Context. Begin attaches one when ctx has none; Detach starts a new
// one for work handed to another goroutine.
//
//	client, err := plexapm.New(cfg, plexapm.Options{Version: version})
//	if err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.MeasureJob(ctx, "ImportJob", func(ctx context.Context) error {
//		return client.MeasureSection(ctx, "fetch", "http", fetch)
//	})
//
// Framework integrations live in the integrations directory and are attached
// through Register.
package plexapm
