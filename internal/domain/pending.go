package domain

// PendingItem: элемент лота, ожидающий публикации. Набор вариантов закрыт.
type PendingItem interface {
	pendingItem()
}

// PollItem пересоздаёт опрос из сохранённых полей.
type PollItem struct {
	Poll PollData
}

// MediaItem копирует медиа с очищенной подписью и кнопками.
type MediaItem struct {
	Source  MessageRef
	Caption string
	Buttons []Button
}

// TextItem публикует очищенный текст с кнопками.
type TextItem struct {
	Body    string
	Buttons []Button
}

// ButtonOnlyItem не несёт контента, его кнопки уходят к предыдущему сообщению.
type ButtonOnlyItem struct {
	Buttons []Button
}

// ForwardItem копирует сообщение как есть.
type ForwardItem struct {
	Source MessageRef
}

func (PollItem) pendingItem()       {}
func (MediaItem) pendingItem()      {}
func (TextItem) pendingItem()       {}
func (ButtonOnlyItem) pendingItem() {}
func (ForwardItem) pendingItem()    {}
