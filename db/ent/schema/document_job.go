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
	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/db/ent/schema/utils"
)

type DocumentJob struct{ ent.Schema }

func (DocumentJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "document_jobs"},
	}
}

func (DocumentJob) Fields() []ent.Field {
	statuses := make([]string, 0, len(constants.JobStatuses))
	for _, s := range constants.JobStatuses {
		statuses = append(statuses, string(s))
	}
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("tenant_id", uuid.UUID{}).Immutable(),
		field.String("correlation_id").NotEmpty().Immutable(),
		field.String("integration_id").Optional().Immutable(),
		// explicit FK
		field.UUID("document_profile_id", uuid.UUID{}).Immutable(),
		field.String("original_filename").NotEmpty().Immutable(),
		field.String("mime_type").NotEmpty().Immutable(),
		field.Int64("file_size_bytes").Positive().Immutable(),
		field.String("storage_path").NotEmpty().Immutable(),
		field.String("status").
			Default(string(constants.JobStatusPending)).
			Validate(utils.EnumValidator(statuses...)),
		field.String("failure_code").Optional().Nillable(),
		field.String("failure_message").Optional().Nillable(),
		field.Int("item_count").NonNegative().Default(0),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
		field.Time("completed_at").Optional().Nillable(),
	}
}

func (DocumentJob) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", DocumentProfile.Type).
			Ref("jobs").
			Field("document_profile_id").
			Unique().
			Required().
			Immutable(),
		edge.To("items", DocumentItem.Type),
	}
}

func (DocumentJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "status", "created_at"),
		index.Fields("tenant_id", "correlation_id"),
	}
}
