package db

// SchemaSQL contains the database schema initialization SQL.
//
// Optional text fields default to "" instead of option<string> so that
// updates never have to distinguish NONE from NULL.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS research_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS query ON research_job TYPE string;
    DEFINE FIELD IF NOT EXISTS guidance ON research_job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS model ON research_job TYPE string;
    DEFINE FIELD IF NOT EXISTS code_interpreter ON research_job TYPE bool DEFAULT false;
    -- Engine operation handle: set once at creation
    DEFINE FIELD IF NOT EXISTS operation_ref ON research_job TYPE string READONLY;
    DEFINE FIELD IF NOT EXISTS status ON research_job TYPE string
        ASSERT $value IN ["pending", "completed", "failed"];
    -- Raw engine document as JSON text
    DEFINE FIELD IF NOT EXISTS result_json ON research_job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS error ON research_job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created_at ON research_job TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON research_job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS poll_failures ON research_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS last_poll_error ON research_job TYPE string DEFAULT "";

    DEFINE INDEX IF NOT EXISTS research_job_status ON research_job FIELDS status;
    DEFINE INDEX IF NOT EXISTS research_job_created ON research_job FIELDS created_at;
`
