package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
	"github.com/HomeGenieAI/homegenie-engine/engine/normalize"
	"github.com/HomeGenieAI/homegenie-engine/pkg/metrics"
)

const (
	// ListingSubject is the NATS subject for incoming normalized listings.
	ListingSubject = "listings.ingest"
	// DLQSubject receives listings that failed repeatedly.
	DLQSubject = "listings.ingest.dlq"
	// MaxRetries before a listing message goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Record  normalize.Record `json:"record"`
	Error   string           `json:"error"`
	Retries int              `json:"retries"`
}

// StartConsumer subscribes to the listing feed and indexes each incoming
// record into the collection, appending alongside the seeded batch.
// Malformed records are reported and dropped; service failures re-publish
// with a retry header and eventually land on the DLQ. m may be nil.
func StartConsumer(nc *nats.Conn, pipeline *Pipeline, sourceName string, m *metrics.IngestMetrics) (*nats.Subscription, error) {
	log := pipeline.deps.Logger
	if m == nil {
		m = metrics.NewIngestMetrics(metrics.New(), "")
	}

	return nc.Subscribe(ListingSubject, func(msg *nats.Msg) {
		var rec normalize.Record
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Error("consumer: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()
		listing := rec.Listing()

		if err := domain.ValidateListing(listing); err != nil {
			// Row-grade failure: report, never retry.
			m.ListingsSkipped.Inc()
			log.Warn("consumer: invalid listing", "title", listing.Title, "error", err)
			return
		}

		m.InFlight.Inc()
		defer m.InFlight.Dec()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		start := time.Now()
		_, err := pipeline.Index(ctx, Request{
			Listings:   []domain.Listing{listing},
			SourceName: sourceName,
			DropOld:    false,
		})
		m.IndexDuration.Since(start)
		if err == nil {
			m.DocumentsIndexed.Inc()
			log.Info("consumer: listing indexed", "title", listing.Title)
			return
		}

		m.BatchesFailed.Inc()
		retries++
		log.Error("consumer: index failed", "title", listing.Title, "retry", retries, "error", err)

		if retries >= MaxRetries {
			dlq := dlqMessage{Record: rec, Error: err.Error(), Retries: retries}
			data, _ := json.Marshal(dlq)
			if perr := nc.Publish(DLQSubject, data); perr != nil {
				log.Error("consumer: DLQ publish failed", "error", perr)
			}
			return
		}

		retryMsg := nats.NewMsg(ListingSubject)
		retryMsg.Data = msg.Data
		retryMsg.Header = nats.Header{}
		retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
		if perr := nc.PublishMsg(retryMsg); perr != nil {
			log.Error("consumer: retry publish failed", "error", perr)
		}
	})
}
