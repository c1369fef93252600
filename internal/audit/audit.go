// Package audit records mission fairness events: every attempt and its
// outcome, with the drawn sample and computed probability. The sink is
// observe-only and never influences control flow.
package audit

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder writes fairness audit events to the configured sinks.
type Recorder struct {
	Logger  zerolog.Logger
	client  influxdb2.Client
	writer  influxdb2_api.WriteAPI
	isValid bool

	attempts metric.Int64Counter
	results  metric.Int64Counter
}

// NewRecorder creates a recorder writing to the logger only. Call
// Connect to additionally enable the InfluxDB sink.
func NewRecorder(log zerolog.Logger) *Recorder {
	r := &Recorder{Logger: log}

	var err error
	r.attempts, err = meter().Int64Counter("mission.attempts")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create attempt counter")
	}
	r.results, err = meter().Int64Counter("mission.results")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create result counter")
	}

	return r
}

// Connect establishes a connection to InfluxDB when influx.enabled is
// set. A failed connection leaves the recorder in log-only mode.
func (r *Recorder) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return nil
	}

	r.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := r.client.Ping(context.Background())
	if err != nil || !running {
		r.Logger.Warn().Err(err).Msg("InfluxDB unreachable, fairness audit stays log-only")
		return nil
	}

	r.writer = r.client.WriteAPI(
		viper.GetString("influx.org"),
		viper.GetString("influx.bucket"),
	)
	errorsCh := r.writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			r.Logger.Error().Err(writeErr).Msg("Error sending audit data to InfluxDB")
		}
	}()

	r.isValid = true
	r.Logger.Info().Msg("InfluxDB audit sink initialized")
	return nil
}

// Close flushes and releases the InfluxDB client.
func (r *Recorder) Close() {
	if r.writer != nil {
		r.writer.Flush()
	}
	if r.client != nil {
		r.client.Close()
	}
}

// Attempt records a mission_attempt event.
func (r *Recorder) Attempt(userID, missionID string, roll, probability float64) {
	r.Logger.Info().
		Str("event", "mission_attempt").
		Str("userId", userID).
		Str("missionId", missionID).
		Float64("roll", roll).
		Float64("probability", probability).
		Msg("Mission attempt")

	if r.attempts != nil {
		r.attempts.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("mission.id", missionID)))
	}

	r.writePoint("mission_attempt", userID, missionID, roll, probability, false)
}

// Result records a mission_result event.
func (r *Recorder) Result(userID, missionID string, success bool, roll, probability float64) {
	r.Logger.Info().
		Str("event", "mission_result").
		Str("userId", userID).
		Str("missionId", missionID).
		Bool("success", success).
		Float64("roll", roll).
		Float64("probability", probability).
		Msg("Mission result")

	if r.results != nil {
		r.results.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("mission.id", missionID),
				attribute.Bool("success", success),
			))
	}

	r.writePoint("mission_result", userID, missionID, roll, probability, success)
}

func (r *Recorder) writePoint(event, userID, missionID string, roll, probability float64, success bool) {
	if !r.isValid {
		return
	}

	point := influxdb2.NewPoint(
		"mission_fairness",
		map[string]string{
			"event":     event,
			"missionId": missionID,
		},
		map[string]interface{}{
			"userId":      userID,
			"roll":        roll,
			"probability": probability,
			"success":     success,
		},
		time.Now(),
	)
	r.writer.WritePoint(point)
}
