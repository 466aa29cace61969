package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	credentialsFile = "credentials.json"
)

var (
	// ErrNoCredentials is returned when neither an API key nor an account token is configured.
	ErrNoCredentials = errors.New("no google credentials: set GOOGLE_API_KEY or run the 'auth' command")
	// ErrNoSheets is returned when the spreadsheet has no sheets at all.
	ErrNoSheets = errors.New("spreadsheet has no sheets")
	// ErrSheetIndexOutOfRange is returned when a sheet index does not exist.
	ErrSheetIndexOutOfRange = errors.New("sheet index out of range")
)

// Credentials selects how the Sheets API is authenticated.
// An API key wins over an OAuth account; the key only works for publicly shared sheets.
type Credentials struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	Account      string // Suffix of the token-<account>.json file written by the auth command
}

// SheetSelector picks one sheet of a spreadsheet.
// Name takes priority over Index; when neither is set the first sheet is used.
type SheetSelector struct {
	Name  string
	Index *int
}

// SheetsClient provides a client for reading values from the Google Sheets API.
type SheetsClient struct {
	service *sheets.Service
	logger  *slog.Logger
}

// NewClient creates a new Google Sheets client from the given credentials.
func NewClient(ctx context.Context, logger *slog.Logger, creds Credentials) (*SheetsClient, error) {
	var opt option.ClientOption
	switch {
	case creds.APIKey != "":
		logger.Debug("Using API key for Google Sheets")
		opt = option.WithAPIKey(creds.APIKey)
	case creds.Account != "":
		config, err := getOAuthConfig(creds.ClientID, creds.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to get OAuth config: %w", err)
		}
		tokenFile := fmt.Sprintf("token-%s.json", creds.Account)
		token, err := tokenFromFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", creds.Account, err)
		}
		opt = option.WithHTTPClient(config.Client(ctx, token))
	default:
		return nil, ErrNoCredentials
	}

	service, err := sheets.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return NewWithService(logger, service), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(logger *slog.Logger, service *sheets.Service) *SheetsClient {
	return &SheetsClient{service: service, logger: logger}
}

// FetchRows returns every row of the selected sheet as strings.
// Row 0 is the header row. An empty sheet yields no rows and no error.
func (c *SheetsClient) FetchRows(ctx context.Context, spreadsheetID string, sel SheetSelector) ([][]string, error) {
	title := sel.Name
	if title == "" {
		var err error
		title, err = c.resolveSheetTitle(ctx, spreadsheetID, sel.Index)
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Fetching sheet values", "spreadsheetID", spreadsheetID, "sheet", title)
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, quoteSheetTitle(title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve sheet values: %w", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}

	c.logger.Info("Successfully fetched rows from Google Sheets", "count", len(rows), "sheet", title)
	return rows, nil
}

// resolveSheetTitle looks up the title of the sheet at index, or of the first sheet when index is nil.
func (c *SheetsClient) resolveSheetTitle(ctx context.Context, spreadsheetID string, index *int) (string, error) {
	meta, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets(properties(title,index))").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to retrieve spreadsheet metadata: %w", err)
	}
	if len(meta.Sheets) == 0 {
		return "", ErrNoSheets
	}

	i := 0
	if index != nil {
		i = *index
	}
	if i < 0 || i >= len(meta.Sheets) {
		return "", fmt.Errorf("%w: %d (spreadsheet has %d sheets)", ErrSheetIndexOutOfRange, i, len(meta.Sheets))
	}
	props := meta.Sheets[i].Properties
	if props == nil {
		return "", fmt.Errorf("sheet %d has no properties", i)
	}
	return props.Title, nil
}

// quoteSheetTitle turns a sheet title into an A1 range covering the whole sheet.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts that have a token-<account>.json file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
