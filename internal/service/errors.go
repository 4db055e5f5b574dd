package service

import "errors"

// Domain errors. The text of each error is the code clients see.
var (
	ErrInvalidDateFormat = errors.New("invalid_date_format")

	ErrNoQuoteAvailable   = errors.New("no_quote_available")
	ErrQuoteInsertFailed  = errors.New("quote_insert_failed")
	ErrNoPromptToday      = errors.New("no_prompt_today")
	ErrAlreadySubmitted   = errors.New("already_submitted_today")
	ErrQuoteMissing       = errors.New("quote_missing")
	ErrTooManyWords       = errors.New("too_many_words")
	ErrEmptyContent       = errors.New("empty_content")
	ErrDatabase           = errors.New("db_error")
	ErrStoryNotFound      = errors.New("story_not_found")
	ErrUserNotFound       = errors.New("not_found")
	ErrBadCredentials     = errors.New("bad_credentials")
	ErrInvalidUsername    = errors.New("invalid_username")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrPasswordMismatch   = errors.New("password_mismatch")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrEmailTaken         = errors.New("email_taken")
	ErrPasswordRequired   = errors.New("password_required")
	ErrPasswordTooShort   = errors.New("password_too_short")
	ErrPasswordTooWeak    = errors.New("password_too_weak")
	ErrUsernameRequired   = errors.New("username_required")
	ErrUsernameTooLong    = errors.New("username_too_long")
	ErrUsernameBadChars   = errors.New("username_invalid_chars")
	ErrEmailRequired      = errors.New("email_required")
	ErrInvalidResetToken  = errors.New("invalid_or_expired_token")
	ErrFavSentenceMissing = errors.New("favorite_quote_sentence_required")
	ErrFavSentenceTooLong = errors.New("favorite_quote_sentence_too_long")
	ErrFavBookTooLong     = errors.New("favorite_quote_book_too_long")
	ErrFavAuthorTooLong   = errors.New("favorite_quote_author_too_long")
)

// IsDomainError reports whether err is one of the errors whose text is safe
// to send to clients.
func IsDomainError(err error) bool {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

var domainErrors = []error{
	ErrInvalidDateFormat, ErrNoQuoteAvailable, ErrQuoteInsertFailed, ErrNoPromptToday,
	ErrAlreadySubmitted, ErrQuoteMissing, ErrTooManyWords, ErrEmptyContent, ErrDatabase,
	ErrStoryNotFound, ErrUserNotFound, ErrBadCredentials, ErrInvalidUsername, ErrInvalidEmail,
	ErrPasswordMismatch, ErrUsernameTaken, ErrEmailTaken, ErrPasswordRequired,
	ErrPasswordTooShort, ErrPasswordTooWeak, ErrUsernameRequired, ErrUsernameTooLong,
	ErrUsernameBadChars, ErrEmailRequired, ErrInvalidResetToken, ErrFavSentenceMissing,
	ErrFavSentenceTooLong, ErrFavBookTooLong, ErrFavAuthorTooLong,
}
