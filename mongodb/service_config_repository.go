package mongodb

import (
	"context"
	"errors"

	"github.com/pitchlyapp/accounts-pitchly/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const pitchlyServiceName = "pitchly"

// ServiceConfigRepository implements domain.ServiceConfigRepository on the
// service_configurations collection.
type ServiceConfigRepository struct {
	configs *mongo.Collection
}

func NewServiceConfigRepository(db *mongo.Database) *ServiceConfigRepository {
	return &ServiceConfigRepository{configs: db.Collection(ServiceConfigCollection)}
}

// GetServiceConfig returns the Pitchly configuration row.
func (r *ServiceConfigRepository) GetServiceConfig(ctx context.Context) (*domain.ServiceConfig, error) {
	var cfg domain.ServiceConfig
	err := r.configs.FindOne(ctx, bson.M{"service": pitchlyServiceName}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrConfigNotFound
		}
		log.Error().Err(err).Msg("Error getting Pitchly service configuration from MongoDB")
		return nil, err
	}
	return &cfg, nil
}

// UpsertServiceConfig inserts or replaces the Pitchly configuration row.
// Used at startup when the configuration is seeded from the environment.
func (r *ServiceConfigRepository) UpsertServiceConfig(ctx context.Context, cfg *domain.ServiceConfig) error {
	cfg.Service = pitchlyServiceName
	_, err := r.configs.ReplaceOne(ctx,
		bson.M{"service": pitchlyServiceName},
		cfg,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		log.Error().Err(err).Msg("Error upserting Pitchly service configuration in MongoDB")
		return err
	}
	return nil
}

var _ domain.ServiceConfigRepository = (*ServiceConfigRepository)(nil)
