package postgres

// SQL-миграции встроены в код для упрощения деплоя.
// Балансы: NUMERIC без масштаба: округление делает приложение.

var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Users},
	{2, migration002Animals},
	{3, migration003Payments},
	{4, migration004Lottery},
	{5, migration005Admin},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS zoo_users (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    stars NUMERIC NOT NULL DEFAULT 0 CHECK (stars >= 0),
    money NUMERIC NOT NULL DEFAULT 0 CHECK (money >= 0),
    diamonds NUMERIC NOT NULL DEFAULT 0 CHECK (diamonds >= 0),
    usdt NUMERIC NOT NULL DEFAULT 0 CHECK (usdt >= 0),
    last_collection TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    referrer_id BIGINT REFERENCES zoo_users(user_id),
    referral_earnings NUMERIC NOT NULL DEFAULT 0,
    total_referrals INTEGER NOT NULL DEFAULT 0,
    total_deposits NUMERIC NOT NULL DEFAULT 0,
    withdrawal_addresses JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_zoo_users_referrer ON zoo_users(referrer_id);
`

var migration002Animals = `
CREATE TABLE IF NOT EXISTS zoo_animals (
    id BIGSERIAL PRIMARY KEY,
    animal_id TEXT UNIQUE NOT NULL,
    user_id BIGINT NOT NULL REFERENCES zoo_users(user_id),
    species VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL,
    rarity VARCHAR(32) NOT NULL,
    stars_per_hour NUMERIC NOT NULL,
    acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_zoo_animals_user ON zoo_animals(user_id, id);
`

var migration003Payments = `
CREATE TABLE IF NOT EXISTS payment_transactions (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES zoo_users(user_id),
    kind VARCHAR(16) NOT NULL,
    amount NUMERIC NOT NULL CHECK (amount > 0),
    network VARCHAR(16) NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    proof_file_id TEXT NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ,
    resolved_by BIGINT
);
CREATE INDEX IF NOT EXISTS idx_payment_tx_queue ON payment_transactions(kind, status, created_at);
CREATE INDEX IF NOT EXISTS idx_payment_tx_user ON payment_transactions(user_id, created_at DESC);
`

var migration004Lottery = `
CREATE TABLE IF NOT EXISTS lottery_tickets (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES zoo_users(user_id),
    draw_date TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_lottery_tickets_draw ON lottery_tickets(draw_date);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMPTZ DEFAULT NOW(),
    expires_at TIMESTAMPTZ,
    last_activity TIMESTAMPTZ DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMPTZ DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`
