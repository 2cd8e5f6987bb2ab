/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Plans    PlansConfig
	Accrual  AccrualConfig
	Http     HttpConfig
	Ledger   LedgerConfig
	Formance FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// PlansConfig points at the plan catalog file
type PlansConfig struct {
	File string
}

// AccrualConfig holds accrual scheduler settings
type AccrualConfig struct {
	Schedule    string
	TickTimeout time.Duration
	MaxRetries  int
}

// HttpConfig holds API server settings
type HttpConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LedgerConfig holds ledger store behaviour settings
type LedgerConfig struct {
	RetryAttempts int
}

// FormanceConfig holds the optional Formance ledger mirror settings.
// The mirror is disabled when StackURL is empty.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
	Asset        string
	Schedule     string
}

func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}
