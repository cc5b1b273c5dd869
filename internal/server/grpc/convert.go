package grpc

import (
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/server/auth"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func numberField(in *structpb.Struct, key string) float64 {
	return in.GetFields()[key].GetNumberValue()
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func claimFields(c auth.Claim) map[string]any {
	if c.IsZero() {
		return map[string]any{"authenticated": false}
	}
	return map[string]any{
		"authenticated": true,
		"uid":           c.SubjectID,
		"role":          c.Role,
		"username":      c.DisplayName,
		"pfp":           c.AvatarURL,
		"expires_at":    c.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func userFields(u *models.User) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"country":  u.Country,
		"role":     u.Role,
		"pfp":      u.AvatarURL,
		"verified": u.Verified,
	}
}

func subscriptionFields(s *models.Subscription) map[string]any {
	return map[string]any{
		"id":            s.ID,
		"check_type":    string(s.CheckType),
		"what_to_check": s.Symbol,
		"operator":      string(s.Operator),
		"value":         s.Threshold,
		"currency":      s.Currency,
	}
}

func notificationFields(n *models.Notification) map[string]any {
	return map[string]any{
		"id":            n.ID,
		"check_type":    string(n.CheckType),
		"what_to_check": n.Symbol,
		"operator":      string(n.Operator),
		"value":         n.Threshold,
		"currency":      n.Currency,
		"created_at":    n.FiredAt.UTC().Format(time.RFC3339),
	}
}
