package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// UI는 이 코드를 기반으로 메시지를 매핑함

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized  = "AUTH_UNAUTHORIZED"   // 신원 없음
	AuthTokenExpired  = "AUTH_TOKEN_EXPIRED"  // 토큰 만료
	AuthTokenInvalid  = "AUTH_TOKEN_INVALID"  // 잘못된 토큰
	AuthTokenRejected = "AUTH_TOKEN_REJECTED" // 상점 API가 401/403 응답

	// ==================== 입력 검증 (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound = "RESOURCE_NOT_FOUND"

	// ==================== 세션 (SESSION_) ====================
	SessionNotReady = "SESSION_NOT_READY" // 신원 확인 전

	// ==================== 장바구니 (CART_) ====================
	CartItemNotFound = "CART_ITEM_NOT_FOUND"
	CartMergeFailed  = "CART_MERGE_FAILED" // 게스트 항목은 다음 시도를 위해 유지

	// ==================== 위시리스트 (WISHLIST_) ====================
	WishlistItemNotFound = "WISHLIST_ITEM_NOT_FOUND"

	// ==================== 원격 API (REMOTE_) ====================
	RemoteUnavailable = "REMOTE_UNAVAILABLE" // 네트워크 오류 또는 5xx, 마지막 상태 표시
	RemoteRejected    = "REMOTE_REJECTED"    // 인증 외 4xx

	// ==================== 내부 (INTERNAL_) ====================
	InternalServerError  = "INTERNAL_SERVER_ERROR"
	InternalStorageError = "INTERNAL_STORAGE_ERROR"
	InternalConfigError  = "INTERNAL_CONFIG_ERROR"
)
