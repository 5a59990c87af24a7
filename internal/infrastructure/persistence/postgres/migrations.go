package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_missions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_shop_events_seasons", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS AND ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Users are never deleted. Level is derived from points by the application.
-- Ids use the "C" collation so ORDER BY id is byte order.
CREATE TABLE IF NOT EXISTS users (
    id TEXT COLLATE "C" PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    last_active TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_points CHECK (points >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);

CREATE INDEX IF NOT EXISTS idx_users_ranking ON users(points DESC, id ASC);

CREATE TABLE IF NOT EXISTS achievements (
    id TEXT COLLATE "C" PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(16) NOT NULL DEFAULT '',
    trigger_kind VARCHAR(20) NOT NULL DEFAULT 'manual',
    trigger_level INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_trigger_kind CHECK (trigger_kind IN ('first_mission', 'level', 'manual'))
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_achievements_name ON achievements(lower(name));

-- Append-only. Season resets keep this table.
CREATE TABLE IF NOT EXISTS user_achievements (
    user_id TEXT COLLATE "C" NOT NULL REFERENCES users(id),
    achievement_id TEXT COLLATE "C" NOT NULL REFERENCES achievements(id),
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id)
);
`

const migration001Down = `
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MISSIONS AND COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS missions (
    id TEXT COLLATE "C" PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    point_value INTEGER NOT NULL,
    mission_type VARCHAR(10) NOT NULL DEFAULT 'custom',
    cooldown_seconds BIGINT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_point_value CHECK (point_value >= 0),
    CONSTRAINT valid_cooldown CHECK (cooldown_seconds >= 0),
    CONSTRAINT valid_mission_type CHECK (mission_type IN ('daily', 'weekly', 'custom'))
);

-- Append-only log, cleared only by a season reset.
CREATE TABLE IF NOT EXISTS mission_completions (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT COLLATE "C" NOT NULL REFERENCES users(id),
    mission_id TEXT COLLATE "C" NOT NULL REFERENCES missions(id),
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mission_completions_user ON mission_completions(user_id, completed_at);

-- lastCompletedAt index, maintained in the same transaction as the log.
CREATE TABLE IF NOT EXISTS mission_cooldowns (
    user_id TEXT COLLATE "C" NOT NULL REFERENCES users(id),
    mission_id TEXT COLLATE "C" NOT NULL REFERENCES missions(id),
    last_completed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (user_id, mission_id)
);
`

const migration002Down = `
DROP TABLE IF EXISTS mission_cooldowns;
DROP TABLE IF EXISTS mission_completions;
DROP TABLE IF EXISTS missions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SHOP, SCORE EVENTS, SEASON ARCHIVES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS shop_items (
    id TEXT COLLATE "C" PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    cost INTEGER NOT NULL,
    stock INTEGER NOT NULL DEFAULT -1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_cost CHECK (cost >= 0),
    -- -1 = unlimited
    CONSTRAINT valid_stock CHECK (stock >= -1)
);

CREATE TABLE IF NOT EXISTS redemptions (
    id UUID PRIMARY KEY,
    user_id TEXT COLLATE "C" NOT NULL REFERENCES users(id),
    item_id TEXT COLLATE "C" NOT NULL REFERENCES shop_items(id),
    cost INTEGER NOT NULL,
    redeemed_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_redemptions_user ON redemptions(user_id, redeemed_at);

CREATE TABLE IF NOT EXISTS score_events (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    multiplier DOUBLE PRECISION NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_multiplier CHECK (multiplier > 0),
    CONSTRAINT valid_window CHECK (end_time > start_time)
);

-- At most one flagged event.
CREATE UNIQUE INDEX IF NOT EXISTS uq_score_events_single_active ON score_events(active) WHERE active;

CREATE TABLE IF NOT EXISTS season_archives (
    id UUID PRIMARY KEY,
    reset_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_season_archives_reset_at ON season_archives(reset_at DESC);

CREATE TABLE IF NOT EXISTS season_standings (
    archive_id UUID NOT NULL REFERENCES season_archives(id) ON DELETE CASCADE,
    rank INTEGER NOT NULL,
    user_id TEXT COLLATE "C" NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    points INTEGER NOT NULL,
    level INTEGER NOT NULL,

    PRIMARY KEY (archive_id, rank)
);
`

const migration003Down = `
DROP TABLE IF EXISTS season_standings;
DROP TABLE IF EXISTS season_archives;
DROP TABLE IF EXISTS score_events;
DROP TABLE IF EXISTS redemptions;
DROP TABLE IF EXISTS shop_items;
`
