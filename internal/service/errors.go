package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

var (
	ErrParamInvalid        = errors.New("参数错误")
	ErrMessageEmpty        = errors.New("消息内容不能为空")
	ErrRoomNotFound        = errors.New("聊天室不存在")
	ErrNotRoomMember       = errors.New("不是该聊天室的成员")
	ErrNotSupportRoom      = errors.New("不是客服会话")
	ErrSelfChat            = errors.New("不能和自己建立会话")
	ErrSupporterTaken      = errors.New("该客服会话已被其他客服认领")
	ErrNoSupporterAssigned = errors.New("该客服会话当前没有客服")
	ErrParticipantCreate   = errors.New("聊天室成员写入失败")
	UnauthorizedError      = errors.New("权限不足")
	UnExpectedError        = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:        BadRequest,
	ErrMessageEmpty:        BadRequest,
	ErrRoomNotFound:        NotFound,
	ErrNotRoomMember:       Unauthorized,
	ErrNotSupportRoom:      BadRequest,
	ErrSelfChat:            BadRequest,
	ErrSupporterTaken:      Conflict,
	ErrNoSupporterAssigned: Conflict,
	ErrParticipantCreate:   InternalServerError,
	UnauthorizedError:      Unauthorized,
	UnExpectedError:        InternalServerError,
}
