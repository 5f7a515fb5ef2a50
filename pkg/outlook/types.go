package outlook

// Message is the subset of a Microsoft Graph message resource the sync reads.
type Message struct {
	ID                     string          `json:"id"`
	ConversationID         string          `json:"conversationId"`
	Subject                string          `json:"subject"`
	BodyPreview            string          `json:"bodyPreview"`
	Body                   *ItemBody       `json:"body,omitempty"`
	From                   *Recipient      `json:"from,omitempty"`
	Sender                 *Recipient      `json:"sender,omitempty"`
	ToRecipients           []Recipient     `json:"toRecipients"`
	CcRecipients           []Recipient     `json:"ccRecipients"`
	BccRecipients          []Recipient     `json:"bccRecipients"`
	ReceivedDateTime       string          `json:"receivedDateTime"`
	SentDateTime           string          `json:"sentDateTime"`
	InternetMessageID      string          `json:"internetMessageId"`
	InternetMessageHeaders []MessageHeader `json:"internetMessageHeaders,omitempty"`
	// Removed is set on delta items describing a deletion
	Removed *Removed `json:"@removed,omitempty"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type MessageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Removed struct {
	Reason string `json:"reason"`
}

// DeltaPage is one page of a /messages/delta response. Exactly one of NextLink
// and DeltaLink is set on a well-formed page.
type DeltaPage struct {
	Value     []Message `json:"value"`
	NextLink  string    `json:"@odata.nextLink"`
	DeltaLink string    `json:"@odata.deltaLink"`
}

type listResponse struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}
