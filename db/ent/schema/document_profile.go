package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

type DocumentProfile struct{ ent.Schema }

func (DocumentProfile) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "document_profiles"},
	}
}

func (DocumentProfile) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("tenant_id", uuid.UUID{}).Immutable(),
		field.String("profile_key").NotEmpty().Immutable(),
		field.Int("profile_version").Positive().Immutable(),
		field.Strings("expected_item_types").Optional().Immutable(),
		field.Strings("flags_enabled").Optional().Immutable(),
		field.JSON("confidence_thresholds", entity.Thresholds{}).Immutable(),
		// deactivation is the only mutation after seeding
		field.Bool("is_active").Default(true),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (DocumentProfile) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("jobs", DocumentJob.Type),
	}
}

func (DocumentProfile) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "profile_key", "profile_version").Unique(),
		index.Fields("tenant_id", "is_active"),
	}
}
