package database

// Schema is the full service DDL. Deleting a user cascades to their king or
// citizen profile, their attempts and their action log entries; answers
// cascade with their attempt.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL CHECK (role IN ('king', 'citizen')),
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    is_staff      BOOLEAN NOT NULL DEFAULT FALSE,
    last_login    TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS kingdoms (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS kings (
    id           UUID PRIMARY KEY,
    user_id      UUID NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
    kingdom_id   UUID NOT NULL UNIQUE REFERENCES kingdoms (id) ON DELETE CASCADE,
    max_citizens INT NOT NULL DEFAULT 3 CHECK (max_citizens BETWEEN 1 AND 10),
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS citizens (
    id           UUID PRIMARY KEY,
    user_id      UUID NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
    kingdom_id   UUID NOT NULL REFERENCES kingdoms (id) ON DELETE CASCADE,
    king_id      UUID REFERENCES kings (id) ON DELETE SET NULL,
    age          INT NOT NULL DEFAULT 0,
    pigeon_email TEXT NOT NULL DEFAULT '',
    is_enrolled  BOOLEAN NOT NULL DEFAULT FALSE,
    enrolled_at  TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_citizens_kingdom ON citizens (kingdom_id);
CREATE INDEX IF NOT EXISTS idx_citizens_king ON citizens (king_id);

CREATE TABLE IF NOT EXISTS tests (
    id          UUID PRIMARY KEY,
    kingdom_id  UUID NOT NULL UNIQUE REFERENCES kingdoms (id) ON DELETE CASCADE,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
    id             UUID PRIMARY KEY,
    test_id        UUID NOT NULL REFERENCES tests (id) ON DELETE CASCADE,
    text           TEXT NOT NULL,
    correct_answer BOOLEAN NOT NULL,
    "order"        INT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_test ON questions (test_id);

CREATE TABLE IF NOT EXISTS test_attempts (
    id              UUID PRIMARY KEY,
    user_id         UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    test_id         UUID NOT NULL REFERENCES tests (id) ON DELETE CASCADE,
    status          TEXT NOT NULL CHECK (status IN ('in_progress', 'completed', 'failed')),
    score           INT NOT NULL DEFAULT 0,
    total_questions INT NOT NULL DEFAULT 0,
    started_at      TIMESTAMPTZ NOT NULL,
    completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_attempts_user ON test_attempts (user_id);

CREATE TABLE IF NOT EXISTS answers (
    id          UUID PRIMARY KEY,
    attempt_id  UUID NOT NULL REFERENCES test_attempts (id) ON DELETE CASCADE,
    question_id UUID NOT NULL REFERENCES questions (id) ON DELETE CASCADE,
    answer      BOOLEAN NOT NULL,
    is_correct  BOOLEAN NOT NULL,
    answered_at TIMESTAMPTZ NOT NULL,
    UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS action_logs (
    id          UUID PRIMARY KEY,
    user_id     UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    action      TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    metadata    JSONB NOT NULL DEFAULT '{}',
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_logs_user ON action_logs (user_id);
CREATE INDEX IF NOT EXISTS idx_action_logs_created ON action_logs (created_at);

CREATE TABLE IF NOT EXISTS token_revocations (
    jti        TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL
);
`
