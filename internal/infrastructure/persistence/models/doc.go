// Package models holds the GORM rows behind the ledger tables. Domain
// types carry no tags; each model converts to and from its domain type
// with ToDomain and FromDomain.
package models
