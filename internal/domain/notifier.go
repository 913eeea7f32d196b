package domain

import "context"

type Notifier interface {
	Notify(ctx context.Context, success bool, message string) error
}
