// Package models defines the core domain models for Split-it.
//
// # Models
//
//   - Group: an expense-sharing group with an aggregate outstanding balance
//   - Membership: a user's place in a group (running balance, role, default split share)
//   - Expense: a payment made by one member, split across members
//   - Split: one member's portion of an expense
//   - Invitation: a pending, accepted or expired invite of an email address into a group
//   - User: an account known to the identity provider
//
// # Design Principles
//
//  1. Money is decimal.Decimal rounded to cents, never float64
//  2. Relationships use ID strings instead of pointers
//  3. Timestamps are Unix seconds
//  4. Models carry no behaviour beyond small state predicates; invariants
//     are enforced by the ledger and membership packages
package models
