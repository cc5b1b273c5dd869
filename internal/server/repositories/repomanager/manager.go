package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pricewatch/internal/dbx"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/users"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/verifications"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Subscriptions(db dbx.DBTX) subscriptions.Repository
	Notifications(db dbx.DBTX) notifications.Repository
	Verifications(db dbx.DBTX) verifications.Repository
}
