package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository interface {
	GetByOrderID(ctx context.Context, orderID string) (*Session, error)
	// TransitionState moves the record from one state to another only if it
	// is still in the from state. It reports whether a row was updated.
	TransitionState(ctx context.Context, orderID string, from, to PaymentState) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Session, error) {
	const q = `
	SELECT order_id, status, amount, gateway_ref, method,
		goods_name, buyer_name, buyer_tel, buyer_email, updated_at
	FROM payments
	WHERE order_id = $1;
	`

	var (
		doc        Document
		status     sql.NullInt64
		amount     sql.NullString
		gatewayRef sql.NullString
		method     sql.NullString
		goodsName  sql.NullString
		buyerName  sql.NullString
		buyerTel   sql.NullString
		buyerEmail sql.NullString
	)

	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&doc.OrderID, &status, &amount, &gatewayRef, &method,
		&goodsName, &buyerName, &buyerTel, &buyerEmail, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get payment %s: %w", orderID, err)
	}

	if status.Valid {
		doc.Status = status.Int64
	}
	if amount.Valid {
		doc.Amount = amount.String
	}
	doc.GatewayRef = gatewayRef.String
	doc.Method = method.String
	doc.GoodsName = goodsName.String
	doc.BuyerName = buyerName.String
	doc.BuyerTel = buyerTel.String
	doc.BuyerEmail = buyerEmail.String

	return doc.Session(), nil
}

func (r *repository) TransitionState(
	ctx context.Context,
	orderID string,
	from, to PaymentState,
) (bool, error) {

	const q = `
	UPDATE payments
	SET status = $3, updated_at = now()
	WHERE order_id = $1 AND status = $2;
	`

	res, err := r.db.ExecContext(ctx, q, orderID, int(from), int(to))
	if err != nil {
		return false, fmt.Errorf("transition payment %s: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
