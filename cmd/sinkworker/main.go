// Command sinkworker bootstraps one PartitionWriter against a synthetic
// record feed, the way a Kafka Connect sink task would host one against its
// broker connection. It exists to exercise the wiring end-to-end; a real
// deployment replaces the synthetic feed with a Connect runtime calling
// Buffer/Write from its poll loop.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowsink/partitionwriter/internal/catalog"
	"github.com/flowsink/partitionwriter/internal/config"
	"github.com/flowsink/partitionwriter/internal/hosttask"
	"github.com/flowsink/partitionwriter/internal/logging"
	"github.com/flowsink/partitionwriter/internal/metrics"
	"github.com/flowsink/partitionwriter/internal/partition"
	"github.com/flowsink/partitionwriter/internal/record"
	"github.com/flowsink/partitionwriter/internal/schema"
	"github.com/flowsink/partitionwriter/internal/sinkwriter"
	"github.com/flowsink/partitionwriter/internal/storage"
	"github.com/flowsink/partitionwriter/internal/timestamp"
	"github.com/flowsink/partitionwriter/internal/writerprovider"
)

func main() {
	cfg, err := config.Load(".", "/etc/sinkworker")
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	log := logging.Component("main")
	log.Info("starting sinkworker", "topic", cfg.Topic)

	m := metrics.Init("sinkworker")
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server exited", "error", err)
			}
		}()
	}

	store, err := storage.New(storage.Config{
		Backend:  cfg.Storage.Backend,
		LocalDir: cfg.Storage.LocalDir,
		BlobURL:  cfg.Storage.BlobBucketURL,
	})
	if err != nil {
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	provider := newProvider(cfg.Writer.Format)

	partitioner, err := partition.NewFieldPartitioner(partition.Field{
		Name: "key",
		Func: func(rec *record.Record) (string, error) {
			if len(rec.Key) == 0 {
				return "_nokey", nil
			}
			return string(rec.Key), nil
		},
	})
	if err != nil {
		log.Error("partitioner init failed", "error", err)
		os.Exit(1)
	}

	var cat catalog.HiveService = catalog.NoopCatalog{}
	if cfg.Writer.HiveIntegration {
		pg, err := catalog.NewPostgresCatalog(catalog.Config{DSN: cfg.Catalog.PostgresDSN})
		if err != nil {
			log.Error("catalog init failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		cat = pg
	}

	loc, err := time.LoadLocation(cfg.Writer.Timezone)
	if err != nil {
		log.Warn("unknown partitioner.timezone, defaulting to UTC", "timezone", cfg.Writer.Timezone)
		loc = time.UTC
	}

	host := hosttask.NewMemoryContext()

	const sourcePartition = int32(0)
	w, err := sinkwriter.New(sinkwriter.Config{
		Topic:                    cfg.Topic,
		SourcePartition:          sourcePartition,
		TopicsDir:                cfg.Writer.TopicsDir,
		LogsDir:                  cfg.Writer.LogsDir,
		FlushSize:                cfg.Writer.FlushSize,
		RotateIntervalMs:         cfg.Writer.RotateIntervalMs,
		RotateScheduleIntervalMs: cfg.Writer.RotateScheduleIntervalMs,
		Timezone:                 loc,
		RetryBackoffMs:           cfg.Writer.RetryBackoffMs,
		FilenameZeroPadWidth:     cfg.Writer.FilenameZeroPadWidth,
		HiveIntegration:          cfg.Writer.HiveIntegration,
		MultiSchemaSupport:       cfg.Writer.MultiSchemaSupport,
		Store:                    store,
		Provider:                 provider,
		Partitioner:              partitioner,
		Extractor:                timestamp.NewRecordTimestampExtractor(timestamp.RecordTime),
		Catalog:                  cat,
		Host:                     host,
		Tracker:                  schema.NewMemoryTracker(),
		Policy:                   schema.NewCompatibilityPolicy(cfg.Writer.SchemaCompatibility),
	})
	if err != nil {
		log.Error("writer init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Error("writer close failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	feed := newSyntheticFeed(cfg.Topic, sourcePartition)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	labels := metrics.Labels{Topic: cfg.Topic, SourcePartition: "0"}

	log.Info("sinkworker running")
	for {
		select {
		case sig := <-sigCh:
			log.Info("shutdown signal received", "signal", sig.String())
			return
		case <-ticker.C:
			for _, rec := range feed.next() {
				w.Buffer(rec)
			}
			if err := w.Write(); err != nil {
				log.Error("write failed", "error", err)
				m.IncWriteErrors(labels, "write")
			}
			m.SetCurrentOffset(labels, float64(w.Offset()))
		}
	}
}

func newProvider(format string) writerprovider.Provider {
	if format == "parquet" {
		return writerprovider.NewParquetProvider()
	}
	return writerprovider.NewJSONLinesProvider()
}

// syntheticFeed stands in for a real broker connection, producing a handful
// of records per tick so the wired-up writer has something to drain.
type syntheticFeed struct {
	topic     string
	partition int32
	offset    int64
}

func newSyntheticFeed(topic string, partition int32) *syntheticFeed {
	return &syntheticFeed{topic: topic, partition: partition}
}

func (f *syntheticFeed) next() []*record.Record {
	out := make([]*record.Record, 0, 4)
	for i := 0; i < 4; i++ {
		out = append(out, &record.Record{
			Topic:     f.topic,
			Partition: f.partition,
			Offset:    f.offset,
			Key:       []byte("default"),
			Value:     []byte("{}"),
			Timestamp: time.Now(),
		})
		f.offset++
	}
	return out
}
