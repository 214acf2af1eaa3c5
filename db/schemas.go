package db

var schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id BIGSERIAL PRIMARY KEY,
	order_no VARCHAR(64) NOT NULL,
	product_id BIGINT NOT NULL,
	quantity INT NOT NULL,
	price NUMERIC(12, 2) NOT NULL,
	status VARCHAR(16) NOT NULL,
	customer_email VARCHAR(255) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inventory (
	product_id BIGINT PRIMARY KEY,
	quantity INT NOT NULL CHECK (quantity >= 0),
	price NUMERIC(12, 2) NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_stock_changes (
	change_key VARCHAR(64) PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
