package extract

// Folder is a search target: a display name and a well-known folder name.
// An empty ID searches the whole mailbox.
type Folder struct {
	Name string
	ID   string
}

// AllFoldersName labels the final mailbox-wide pass.
const AllFoldersName = "All Folders"

// DefaultFolders is the search order. Well-known folder names resolve in
// every mailbox; the last entry searches the whole mailbox so messages in
// user-created folders are still found.
var DefaultFolders = []Folder{
	{Name: "Inbox", ID: "inbox"},
	{Name: "Sent Items", ID: "sentitems"},
	{Name: "Deleted Items", ID: "deleteditems"},
	{Name: "Junk Email", ID: "junkemail"},
	{Name: "Archive", ID: "archive"},
	{Name: "Drafts", ID: "drafts"},
	{Name: "Recoverable Items (Deletions)", ID: "recoverableitemsdeletions"},
	{Name: AllFoldersName, ID: ""},
}
