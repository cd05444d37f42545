package auth

// Message is the envelope payload understood by the auth worker.
type Message interface {
	authMessage()
}

// Initialize registers an application on Instance. Replied with AuthorizeURL.
type Initialize struct {
	Instance string
}

// AuthorizeURL is the page the user opens to obtain an authorization code.
type AuthorizeURL struct {
	URL string
}

// SubmitCode exchanges the code shown after authorizing. Replied with
// Authenticated.
type SubmitCode struct {
	Code string
}

// Authenticated reports the account the exchanged token belongs to.
type Authenticated struct {
	Instance string
	Username string
}

// Failed is the reply to any request that could not be carried out.
type Failed struct {
	Reason string
}

func (Initialize) authMessage()    {}
func (AuthorizeURL) authMessage()  {}
func (SubmitCode) authMessage()    {}
func (Authenticated) authMessage() {}
func (Failed) authMessage()        {}
