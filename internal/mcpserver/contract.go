package mcpserver

// LibraryGuide describes the library model to LLM consumers so tool calls
// use ids, page numbers and groups the way the shelf does.
const LibraryGuide = `# Flipshelf Library Guide

Flipshelf keeps a personal library of PDF, EPUB and TXT books.

## Entities

- **Book**: ` + "`" + `id` + "`" + `, ` + "`" + `title` + "`" + `, ` + "`" + `author` + "`" + ` ("Unknown Author" when the file had none),
  ` + "`" + `format` + "`" + ` (pdf | epub | txt), pages, bookmarks, ` + "`" + `currentPage` + "`" + ` (0-based).
- **Group**: a named, colored, ordered list of book ids shown as one stacked tile.
  A book may belong to several groups. A group whose last member is removed is deleted.
- **Recycle bin**: deleted books go here first and can be restored. Deleting a book
  also removes it from every group.
- **Quote**: a saved excerpt with a 1-based ` + "`" + `page` + "`" + ` number and an optional note.

## Page numbers

- ` + "`" + `read_page` + "`" + `, bookmarks and quotes use **1-based** page numbers.
- ` + "`" + `currentPage` + "`" + ` on a book is the 0-based index of the page last open.

## Importing

- Use ` + "`" + `import_book` + "`" + ` with an https URL or a base64 ` + "`" + `data:` + "`" + ` URI.
- Only PDF, EPUB and plain-text files are accepted (max 50 MB).
- A file whose content hash is already in the library is skipped, not duplicated.

## Groups

- Group colors come from a fixed palette:
  #89B4FA (default), #F38BA8, #A6E3A1, #FAB387, #CBA6F7, #F9E2AF,
  #94E2D5, #EBA0AC, #F5C2E7, #74C7EC, #B4BEFE, #89DCEB.
- ` + "`" + `create_group` + "`" + ` takes a name and the member book ids in display order.
`
