package errors

import (
	"errors"
	"strings"

	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"github.com/ikkim/storefront-sync/pkg/util"
	"gorm.io/gorm"
)

// ErrorInfo UI에 노출되는 에러 정보 구조
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseError 에러를 코드와 사용자 메시지로 변환
// 호스트나 SQL 같은 내부 정보는 메시지에 노출하지 않음
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	// 1. 엔진 에러
	switch {
	case errors.Is(err, service.ErrCartItemNotFound):
		return ErrorInfo{Code: CartItemNotFound, Message: "This item is no longer in your cart"}
	case errors.Is(err, service.ErrWishlistItemNotFound):
		return ErrorInfo{Code: WishlistItemNotFound, Message: "This item is no longer in your wishlist"}
	case errors.Is(err, service.ErrInvalidProduct):
		return ErrorInfo{Code: ValidationRequired, Message: "A product is required"}
	case errors.Is(err, service.ErrIdentityUnknown):
		return ErrorInfo{Code: SessionNotReady, Message: "Your session is still starting, try again in a moment"}
	case errors.Is(err, service.ErrMergeFailed):
		return ErrorInfo{Code: CartMergeFailed, Message: "Items saved before you signed in could not be added yet, they are kept for later"}
	}

	// 2. 토큰 에러
	if errors.Is(err, util.ErrExpiredToken) {
		return ErrorInfo{Code: AuthTokenExpired, Message: "Your session has expired, please sign in again"}
	}
	if errors.Is(err, util.ErrInvalidToken) {
		return ErrorInfo{Code: AuthTokenInvalid, Message: "Invalid access token"}
	}

	// 3. 원격 API 에러
	if apiErr, ok := storefront.AsError(err); ok {
		return parseRemoteError(apiErr, context)
	}
	if errors.Is(err, storefront.ErrNetwork) {
		return ErrorInfo{Code: RemoteUnavailable, Message: unavailableMessage(context)}
	}

	// 4. 저장소 백엔드
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{Code: ResourceNotFound, Message: "Nothing saved yet"}
	}

	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "timeout") {
		return ErrorInfo{Code: RemoteUnavailable, Message: unavailableMessage(context)}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: defaultMessage(context),
	}
}

func parseRemoteError(apiErr *storefront.Error, context string) ErrorInfo {
	switch {
	case errors.Is(apiErr, storefront.ErrUnauthorized):
		return ErrorInfo{Code: AuthTokenRejected, Message: "Please sign in again"}
	case errors.Is(apiErr, storefront.ErrNotFound):
		return ErrorInfo{Code: ResourceNotFound, Message: notFoundMessage(context)}
	case errors.Is(apiErr, storefront.ErrInvalidRequest):
		msg := apiErr.Message
		if msg == "" {
			msg = "The request was rejected"
		}
		return ErrorInfo{Code: RemoteRejected, Message: msg}
	default:
		return ErrorInfo{Code: RemoteUnavailable, Message: unavailableMessage(context)}
	}
}

func notFoundMessage(context string) string {
	contextLower := strings.ToLower(context)
	if strings.Contains(contextLower, "wishlist") {
		return "This item is no longer in your wishlist"
	}
	if strings.Contains(contextLower, "cart") {
		return "This item is no longer in your cart"
	}
	return "Not found"
}

func unavailableMessage(context string) string {
	contextLower := strings.ToLower(context)
	if strings.Contains(contextLower, "wishlist") {
		return "The shop is unreachable, showing your last saved wishlist"
	}
	if strings.Contains(contextLower, "cart") {
		return "The shop is unreachable, showing your last saved cart"
	}
	return "The shop is unreachable, please try again later"
}

func defaultMessage(context string) string {
	contextLower := strings.ToLower(context)
	if strings.Contains(contextLower, "add") {
		return "Could not add the item, please try again"
	}
	if strings.Contains(contextLower, "update") {
		return "Could not update the item, please try again"
	}
	if strings.Contains(contextLower, "remove") || strings.Contains(contextLower, "clear") {
		return "Could not remove the item, please try again"
	}
	return "Something went wrong, please try again"
}

// ParseAndRespond 에러를 파싱하여 응답 본문으로 작성
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	info := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   info.Code,
		Message: info.Message,
	})
}

// StatusFor 에러에 맞는 HTTP 상태 코드 선택
// 원격 장애 시에도 마지막 상태를 제공하므로 200으로 응답
func StatusFor(err error) int {
	switch ParseError(err, "").Code {
	case CartItemNotFound, WishlistItemNotFound, ResourceNotFound:
		return 404
	case ValidationRequired, ValidationInvalidInput, ValidationInvalidID, RemoteRejected:
		return 400
	case AuthTokenExpired, AuthTokenInvalid, AuthUnauthorized:
		return 401
	case SessionNotReady:
		return 409
	case RemoteUnavailable, AuthTokenRejected, CartMergeFailed:
		return 200
	default:
		return 500
	}
}
