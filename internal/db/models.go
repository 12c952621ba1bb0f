package db

import (
	"encoding/json"
	"time"
)

// Source maps news.sources.
type Source struct {
	SourceID         int64     `gorm:"column:source_id;primaryKey;autoIncrement"`
	Name             string    `gorm:"column:name;type:text;not null;unique"`
	FeedURL          string    `gorm:"column:feed_url;type:text;not null"`
	BaseURL          *string   `gorm:"column:base_url;type:text"`
	Category         *string   `gorm:"column:category;type:text"`
	TermsURL         *string   `gorm:"column:terms_url;type:text"`
	AllowFulltext    bool      `gorm:"column:allow_fulltext;type:boolean;not null;default:false"`
	AllowDerivatives bool      `gorm:"column:allow_derivatives;type:boolean;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "news.sources" }

// Article maps news.articles. Rows are immutable once fingerprinted except
// for the dedup back-reference and the version counter.
type Article struct {
	ArticleID    int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleUUID  string     `gorm:"column:article_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceID     int64      `gorm:"column:source_id;type:bigint;not null"`
	URL          string     `gorm:"column:url;type:text;not null;unique"`
	CanonicalURL *string    `gorm:"column:canonical_url;type:text"`
	Title        *string    `gorm:"column:title;type:text"`
	Author       *string    `gorm:"column:author;type:text"`
	Category     *string    `gorm:"column:category;type:text"`
	PublishedAt  *time.Time `gorm:"column:published_at;type:timestamptz"`
	FetchedAt    *time.Time `gorm:"column:fetched_at;type:timestamptz"`
	Language     *string    `gorm:"column:language;type:text"`
	RawText      *string    `gorm:"column:raw_text;type:text"`
	CleanText    *string    `gorm:"column:clean_text;type:text"`
	ContentHash  *string    `gorm:"column:content_hash;type:text"`
	Version      int        `gorm:"column:version;type:integer;not null;default:1"`
	DuplicateOf  *int64     `gorm:"column:duplicate_of;type:bigint"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "news.articles" }

// ArticleKeyword maps news.article_keywords.
type ArticleKeyword struct {
	ArticleID int64     `gorm:"column:article_id;type:bigint;primaryKey"`
	Keyword   string    `gorm:"column:keyword;type:text;primaryKey"`
	Method    string    `gorm:"column:method;type:text;primaryKey"`
	Score     float64   `gorm:"column:score;type:double precision;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArticleKeyword) TableName() string { return "news.article_keywords" }

// Topic maps news.topics. A non-null merged_into marks the topic terminal:
// it is never assigned new articles and its centroid is never touched again.
type Topic struct {
	TopicID         int64     `gorm:"column:topic_id;primaryKey;autoIncrement"`
	TopicUUID       string    `gorm:"column:topic_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Title           *string   `gorm:"column:title;type:text"`
	Category        *string   `gorm:"column:category;type:text"`
	FirstSeenAt     time.Time `gorm:"column:first_seen_at;type:timestamptz;not null"`
	LastUpdatedAt   time.Time `gorm:"column:last_updated_at;type:timestamptz;not null"`
	PopularityCount int       `gorm:"column:popularity_count;type:integer;not null;default:0"`
	Centroid        *string   `gorm:"column:centroid;type:vector(384)"`
	MergedInto      *int64    `gorm:"column:merged_into;type:bigint"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Topic) TableName() string { return "news.topics" }

// TopicArticle maps news.topic_articles, the assignment edge. An article has
// at most one active edge; merges repoint topic_id instead of inserting.
type TopicArticle struct {
	TopicID    int64     `gorm:"column:topic_id;type:bigint;primaryKey"`
	ArticleID  int64     `gorm:"column:article_id;type:bigint;primaryKey;unique"`
	Score      *float64  `gorm:"column:score;type:double precision"`
	AssignedAt time.Time `gorm:"column:assigned_at;type:timestamptz;not null;default:now()"`
}

func (TopicArticle) TableName() string { return "news.topic_articles" }

// Digest maps news.digests, the generated per-topic summary served in feeds.
type Digest struct {
	DigestID      int64     `gorm:"column:digest_id;primaryKey;autoIncrement"`
	DigestUUID    string    `gorm:"column:digest_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	TopicID       int64     `gorm:"column:topic_id;type:bigint;not null;uniqueIndex:uq_digest_topic_hash"`
	DigestText    string    `gorm:"column:digest_text;type:text;not null"`
	ContentHash   string    `gorm:"column:content_hash;type:text;not null;uniqueIndex:uq_digest_topic_hash"`
	LLMModel      string    `gorm:"column:llm_model;type:text;not null"`
	PromptVersion string    `gorm:"column:prompt_version;type:text;not null;default:v1"`
	Status        string    `gorm:"column:status;type:text;not null;default:ok"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Digest) TableName() string { return "news.digests" }

// DigestEmbedding maps news.digest_embeddings.
type DigestEmbedding struct {
	DigestEmbeddingID int64     `gorm:"column:digest_embedding_id;primaryKey;autoIncrement"`
	DigestID          int64     `gorm:"column:digest_id;type:bigint;not null;unique"`
	ModelName         string    `gorm:"column:model_name;type:text;not null"`
	ModelVersion      string    `gorm:"column:model_version;type:text;not null"`
	Dim               int       `gorm:"column:dim;type:integer;not null"`
	Embedding         string    `gorm:"column:embedding;type:vector(384);not null"`
	ContentHash       string    `gorm:"column:content_hash;type:text;not null"`
	EmbeddedAt        time.Time `gorm:"column:embedded_at;type:timestamptz;not null;default:now()"`
}

func (DigestEmbedding) TableName() string { return "news.digest_embeddings" }

// UserPreference maps news.user_preferences. Categories and keywords are
// stored as JSON arrays, read-only for the ranking engines.
type UserPreference struct {
	UserID     string          `gorm:"column:user_id;type:text;primaryKey"`
	Categories json.RawMessage `gorm:"column:categories;type:jsonb;not null;default:'[]'"`
	Keywords   json.RawMessage `gorm:"column:keywords;type:jsonb;not null;default:'[]'"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (UserPreference) TableName() string { return "news.user_preferences" }

// UserEmbedding maps news.user_embeddings, the cached preference vector.
type UserEmbedding struct {
	UserID       string    `gorm:"column:user_id;type:text;primaryKey"`
	ModelName    string    `gorm:"column:model_name;type:text;not null"`
	ModelVersion string    `gorm:"column:model_version;type:text;not null"`
	Dim          int       `gorm:"column:dim;type:integer;not null"`
	Embedding    string    `gorm:"column:embedding;type:vector(384);not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (UserEmbedding) TableName() string { return "news.user_embeddings" }

// Event maps news.events, the user interaction log feeding ranking signals.
type Event struct {
	EventID   int64     `gorm:"column:event_id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;type:text;not null"`
	TopicID   *int64    `gorm:"column:topic_id;type:bigint"`
	DigestID  *int64    `gorm:"column:digest_id;type:bigint"`
	EventType string    `gorm:"column:event_type;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Event) TableName() string { return "news.events" }

// TaskRun maps news.task_runs, one row per batch stage invocation.
type TaskRun struct {
	TaskRunID    int64           `gorm:"column:task_run_id;primaryKey;autoIncrement"`
	TaskRunUUID  string          `gorm:"column:task_run_uuid;type:uuid;not null;unique"`
	Stage        string          `gorm:"column:stage;type:text;not null"`
	StartedAt    time.Time       `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt   *time.Time      `gorm:"column:finished_at;type:timestamptz"`
	Status       string          `gorm:"column:status;type:text;not null;default:running"`
	Stats        json.RawMessage `gorm:"column:stats;type:jsonb"`
	ErrorMessage *string         `gorm:"column:error_message;type:text"`
}

func (TaskRun) TableName() string { return "news.task_runs" }

func autoMigrateModels() []any {
	return []any{
		&Source{},
		&Article{},
		&ArticleKeyword{},
		&Topic{},
		&TopicArticle{},
		&Digest{},
		&DigestEmbedding{},
		&UserPreference{},
		&UserEmbedding{},
		&Event{},
		&TaskRun{},
	}
}
