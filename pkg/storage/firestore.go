package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/types"
	lflag "github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Documents hold their payload as a JSON string for portability.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(deviceID, name string) (*firestore.CollectionRef, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("deviceID cannot be empty")
	}
	return f.client.Collection("devices").Doc(deviceID).Collection(name), nil
}

func docJSON(doc *firestore.DocumentSnapshot, out any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// GetSettings retrieves the device configuration from the "config/settings"
// document. A missing document returns zero settings with version 0 so the
// caller runs the full migration chain.
func (f *FirestoreProvider) GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error) {
	coll, err := f.getCollection(deviceID, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.Settings
	if err := docJSON(doc, &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "bad settings doc", slog.String("deviceID", deviceID), slog.Any("err", err))
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings saves the device configuration to the "config/settings"
// document. It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(deviceID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetThermalModel retrieves the calibrated thermal model from the
// "config/thermal_model" document. A missing document returns a zero model;
// the engine substitutes the default K.
func (f *FirestoreProvider) GetThermalModel(ctx context.Context, deviceID string) (types.ThermalModel, error) {
	coll, err := f.getCollection(deviceID, "config")
	if err != nil {
		return types.ThermalModel{}, err
	}
	doc, err := coll.Doc("thermal_model").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.ThermalModel{}, nil
		}
		return types.ThermalModel{}, fmt.Errorf("failed to fetch thermal model doc: %w", err)
	}

	var m types.ThermalModel
	if err := docJSON(doc, &m); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "bad thermal model doc", slog.String("deviceID", deviceID), slog.Any("err", err))
		return types.ThermalModel{}, err
	}
	return m, nil
}

// SetThermalModel saves the thermal model to the "config/thermal_model"
// document.
func (f *FirestoreProvider) SetThermalModel(ctx context.Context, deviceID string, model types.ThermalModel) error {
	jsonBytes, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal thermal model: %w", err)
	}

	coll, err := f.getCollection(deviceID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("thermal_model").Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	})
	if err != nil {
		return fmt.Errorf("failed to save thermal model: %w", err)
	}
	return nil
}

// InsertOptimizationRecord adds or overwrites the decision record for its
// hour in the "optimization_history" collection. The document ID is the
// RFC3339 timestamp for lexicographic ordering and efficient range queries.
func (f *FirestoreProvider) InsertOptimizationRecord(ctx context.Context, deviceID string, record types.OptimizationRecord) error {
	if record.Timestamp.IsZero() {
		return fmt.Errorf("optimization record missing timestamp")
	}
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization record: %w", err)
	}

	coll, err := f.getCollection(deviceID, "optimization_history")
	if err != nil {
		return err
	}
	docID := record.Timestamp.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": record.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert optimization record: %w", err)
	}
	return nil
}

// GetOptimizationHistory retrieves decision records within the specified
// time range. Uses document ID range queries for efficient filtering without
// reading all documents.
func (f *FirestoreProvider) GetOptimizationHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.OptimizationRecord, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.getCollection(deviceID, "optimization_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []types.OptimizationRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating optimization history: %w", err)
		}

		var r types.OptimizationRecord
		if err := docJSON(doc, &r); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "bad optimization record doc", slog.String("docID", doc.Ref.ID), slog.String("deviceID", deviceID), slog.Any("err", err))
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// GetRecentOptimizationHistory retrieves up to limit of the newest decision
// records, returned ascending by timestamp.
func (f *FirestoreProvider) GetRecentOptimizationHistory(ctx context.Context, deviceID string, limit int) ([]types.OptimizationRecord, error) {
	coll, err := f.getCollection(deviceID, "optimization_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var records []types.OptimizationRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating recent optimization history: %w", err)
		}

		var r types.OptimizationRecord
		if err := docJSON(doc, &r); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "bad optimization record doc", slog.String("docID", doc.Ref.ID), slog.String("deviceID", deviceID), slog.Any("err", err))
			return nil, err
		}
		records = append(records, r)
	}

	// reverse into ascending order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// InsertCalibration adds a calibration record to the "calibrations"
// collection, keyed by its RFC3339 timestamp.
func (f *FirestoreProvider) InsertCalibration(ctx context.Context, deviceID string, record types.CalibrationRecord) error {
	if record.Timestamp.IsZero() {
		return fmt.Errorf("calibration record missing timestamp")
	}
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration record: %w", err)
	}

	coll, err := f.getCollection(deviceID, "calibrations")
	if err != nil {
		return err
	}
	docID := record.Timestamp.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": record.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert calibration record: %w", err)
	}
	return nil
}

// GetLatestCalibration retrieves the most recent calibration record, or nil
// when the device has never been calibrated.
func (f *FirestoreProvider) GetLatestCalibration(ctx context.Context, deviceID string) (*types.CalibrationRecord, error) {
	coll, err := f.getCollection(deviceID, "calibrations")
	if err != nil {
		return nil, err
	}
	iter := coll.
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest calibration doc: %w", err)
	}

	var r types.CalibrationRecord
	if err := docJSON(doc, &r); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "bad calibration doc", slog.String("docID", doc.Ref.ID), slog.String("deviceID", deviceID), slog.Any("err", err))
		return nil, err
	}
	return &r, nil
}
