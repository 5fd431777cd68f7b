// Package models defines the GORM models of the inventory IPAM tables.
package models
