package store

// Schema holds all DDL for the local store. Every statement is
// create-if-absent so schema creation is idempotent. Designed to stay
// portable between SQLite and Cloudflare D1.
const Schema = `
-- Deck metadata, including cosmetics and cover cards parsed from the YDK.
CREATE TABLE IF NOT EXISTS Decks (
  deck_id TEXT PRIMARY KEY,
  deck_name TEXT NOT NULL,
  user_id INTEGER,
  deck_contributor TEXT,
  deck_like INTEGER DEFAULT 0,
  upload_date INTEGER,
  update_date INTEGER,
  is_public INTEGER DEFAULT 1,
  deck_ydk TEXT,
  deckCase INTEGER DEFAULT 0,
  deckProtector INTEGER DEFAULT 0,
  deckCoverCard1 INTEGER DEFAULT 0,
  deckCoverCard2 INTEGER DEFAULT 0,
  deckCoverCard3 INTEGER DEFAULT 0
);

-- Primary information for every unique card.
CREATE TABLE IF NOT EXISTS Cards (
  id INTEGER PRIMARY KEY,
  cid INTEGER,
  cn_name TEXT NOT NULL,
  jp_name TEXT,
  en_name TEXT,
  card_text_types TEXT,
  card_text_desc TEXT,
  atk INTEGER,
  def INTEGER,
  level INTEGER
);

-- Lookup tables mapping integer codes to descriptive names.
CREATE TABLE IF NOT EXISTS Races (race_code INTEGER PRIMARY KEY, race_name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS Attributes (attribute_code INTEGER PRIMARY KEY, attribute_name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS CardTypes (type_code INTEGER PRIMARY KEY, type_name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS Setcodes (set_code INTEGER PRIMARY KEY, set_name_cn TEXT, set_name_jp TEXT);

-- Link tables for many-to-many relationships.
CREATE TABLE IF NOT EXISTS DeckCards (
  deck_id TEXT NOT NULL,
  card_id INTEGER NOT NULL,
  card_type TEXT NOT NULL,
  count INTEGER NOT NULL,
  PRIMARY KEY (deck_id, card_id, card_type)
);
CREATE TABLE IF NOT EXISTS CardToRace (card_id INTEGER NOT NULL, race_code INTEGER NOT NULL, PRIMARY KEY (card_id, race_code));
CREATE TABLE IF NOT EXISTS CardToAttribute (card_id INTEGER NOT NULL, attribute_code INTEGER NOT NULL, PRIMARY KEY (card_id, attribute_code));
CREATE TABLE IF NOT EXISTS CardToType (card_id INTEGER NOT NULL, type_code INTEGER NOT NULL, PRIMARY KEY (card_id, type_code));
CREATE TABLE IF NOT EXISTS CardToSetcode (card_id INTEGER NOT NULL, set_code INTEGER NOT NULL, PRIMARY KEY (card_id, set_code));

-- Indexes for the common search and sort paths.
CREATE INDEX IF NOT EXISTS idx_decks_user_id ON Decks(user_id);
CREATE INDEX IF NOT EXISTS idx_decks_like ON Decks(deck_like);
CREATE INDEX IF NOT EXISTS idx_decks_update_date ON Decks(update_date);
CREATE INDEX IF NOT EXISTS idx_deckcards_card_id ON DeckCards(card_id);
`
