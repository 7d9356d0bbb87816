package mcpserver

// TaggingRules describes the naming rules LLM consumers should follow when
// creating vocabularies and tags.
const TaggingRules = `# Taxon Tagging Rules

## Tags

1. A tag name is 2 to 100 characters long.
2. Allowed characters are letters, digits, spaces and the symbols ` + "`-`" + `, ` + "`_`" + ` and ` + "`.`" + `.
   Commas are never part of a name: they separate tags in a tag string.
3. Names are trimmed and Unicode NFC normalised before they are stored.
4. A free tag belongs to no vocabulary. A vocabulary tag belongs to exactly
   one vocabulary. The same name may exist once as a free tag and once in
   each vocabulary.

## Tag strings

A tag string such as ` + "`jazz, rock ,, jazz`" + ` is split on commas, every piece is
trimmed, empty pieces are dropped and repeated names are kept once in the
order they first appear. The example yields ` + "`jazz`" + ` and ` + "`rock`" + `.
Use the ` + "`normalize_tags`" + ` tool to preview the result.

## Vocabularies

1. A vocabulary name is 2 to 100 characters long and unique.
2. Deleting a vocabulary deletes its tags and removes them from datasets.

## Datasets

A dataset shows its free tags under ` + "`tags`" + `. Each configured vocabulary
field lists the names of the dataset's tags from that vocabulary.
`
