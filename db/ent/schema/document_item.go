package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/docintel/db/ent/schema/utils"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

type DocumentItem struct{ ent.Schema }

func (DocumentItem) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "document_items"},
	}
}

func (DocumentItem) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("tenant_id", uuid.UUID{}).Immutable(),
		field.UUID("document_job_id", uuid.UUID{}).Immutable(),
		field.Int("item_index").NonNegative().Immutable(),
		field.String("item_type").NotEmpty().Immutable(),
		field.String("raw_text").Immutable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Float("ocr_confidence").Validate(utils.Range01).Immutable(),
		field.String("ocr_provider").Immutable(),
		field.Float("extraction_confidence").Optional().Nillable().Validate(utils.Range01).Immutable(),
		field.Float("overall_confidence").Validate(utils.Range01).Immutable(),
		field.JSON("flags", entity.Flags{}).Immutable(),
		field.JSON("evidence", entity.Evidence{}).Immutable(),
		field.JSON("structured_data", entity.StructuredData{}).Immutable(),
		// triage output
		field.Bool("needs_review").Immutable(),
		field.String("review_priority").
			Validate(utils.EnumValidator(
				string(entity.PriorityLow),
				string(entity.PriorityMedium),
				string(entity.PriorityHigh),
			)).
			Immutable(),
		field.String("review_reason").Optional().Immutable(),
		// review outcome, written once
		field.Bool("is_reviewed").Default(false),
		field.String("reviewed_by").Optional().Nillable(),
		field.Time("reviewed_at").Optional().Nillable(),
		field.String("review_notes").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (DocumentItem) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", DocumentJob.Type).
			Ref("items").
			Field("document_job_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (DocumentItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "document_job_id", "item_index").Unique(),
		index.Fields("tenant_id", "needs_review", "review_priority"),
	}
}
