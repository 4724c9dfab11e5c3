package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS eto_runs (
    id uuid NOT NULL,
    date timestamp WITH TIME ZONE NOT NULL,
    source text NOT NULL,
    rows integer NOT NULL,
    cols integer NOT NULL,
    valid integer NOT NULL,
    nonfinite integer NOT NULL,
    eto_min float8 NULL,
    eto_max float8 NULL,
    eto_mean float8 NULL,
    eto_stddev float8 NULL,
    duration_ms bigint NOT NULL,
    output text NULL,
    created_at timestamp WITH TIME ZONE NOT NULL,
    PRIMARY KEY (id, date)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('eto_runs', 'date', if_not_exists => true);`

const createSourceIndexSQL = `CREATE INDEX IF NOT EXISTS eto_runs_source_date_idx ON eto_runs (source, date DESC);`
