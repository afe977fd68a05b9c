package domain

import "errors"

var (
	// ErrChannelUnresolvable: хэндл канала не удалось перевести в id.
	ErrChannelUnresolvable = errors.New("канал недоступен")
	// ErrNothingDelivered: ни одно сообщение ссылки не удалось скопировать.
	ErrNothingDelivered = errors.New("контент не доставлен")
	// ErrMessageGone: сообщение уже удалено или недоступно.
	ErrMessageGone = errors.New("сообщение не найдено")
)
